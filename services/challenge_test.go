package services

import (
	"errors"
	"testing"
	"time"

	"nexus-progression-engine/models"
	"nexus-progression-engine/utils"

	"github.com/google/uuid"
)

func newChallengeFixture(t *testing.T) (*ChallengeService, *LedgerService) {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	badges := NewBadgeService(db, ledger)
	if err := badges.SeedDefinitions(); err != nil {
		t.Fatal(err)
	}
	// The pinned clock matters: the challenge windows below sit around
	// testDay, which is in the past — a service reading the wall clock
	// would refuse progress against every one of them.
	return NewChallengeService(db, ledger, badges, utils.FixedClock{T: testDay}), ledger
}

func makeChallenge(t *testing.T, svc *ChallengeService, target, xp int64, start, end time.Time) *models.Challenge {
	t.Helper()
	ch := models.Challenge{
		ID:       uuid.NewString(),
		Title:    "Post five times",
		Type:     models.ChallengeWeekly,
		Counter:  "create_post",
		Target:   target,
		XPReward: xp,
		StartsAt: start,
		EndsAt:   end,
		IsActive: true,
	}
	if err := svc.DB.Create(&ch).Error; err != nil {
		t.Fatal(err)
	}
	return &ch
}

func TestRecordProgressClampsAtTarget(t *testing.T) {
	svc, ledger := newChallengeFixture(t)
	seedAccount(t, ledger, "u1", 0)
	ch := makeChallenge(t, svc, 5, 100, testDay.Add(-time.Hour), testDay.Add(24*time.Hour))

	if err := svc.RecordProgress("u1", ch.ID, 3); err != nil {
		t.Fatal(err)
	}
	// overshoot clamps to target and latches completion
	if err := svc.RecordProgress("u1", ch.ID, 10); err != nil {
		t.Fatal(err)
	}

	var p models.ChallengeProgress
	svc.DB.First(&p, "account_id = ? AND challenge_id = ?", "u1", ch.ID)
	if p.Count != 5 {
		t.Fatalf("count = %d, want clamped 5", p.Count)
	}
	if !p.Completed {
		t.Fatal("completion not latched")
	}

	// further events once at target are ignored
	if err := svc.RecordProgress("u1", ch.ID, 2); err != nil {
		t.Fatal(err)
	}
	svc.DB.First(&p, "account_id = ? AND challenge_id = ?", "u1", ch.ID)
	if p.Count != 5 {
		t.Fatalf("count after extra events = %d, want 5", p.Count)
	}

	// completion alone pays nothing
	total, _ := ledger.CurrentXP("u1")
	if total != 0 {
		t.Fatalf("xp before claim = %d, want 0", total)
	}
}

func TestRecordProgressIgnoresEnded(t *testing.T) {
	svc, ledger := newChallengeFixture(t)
	seedAccount(t, ledger, "u1", 0)
	ch := makeChallenge(t, svc, 5, 100, testDay.Add(-48*time.Hour), testDay.Add(-time.Hour))

	if err := svc.RecordProgress("u1", ch.ID, 3); err != nil {
		t.Fatal(err)
	}
	var n int64
	svc.DB.Model(&models.ChallengeProgress{}).Where("challenge_id = ?", ch.ID).Count(&n)
	if n != 0 {
		t.Fatal("progress recorded against an ended challenge")
	}
}

func TestClaimLifecycle(t *testing.T) {
	svc, ledger := newChallengeFixture(t)
	seedAccount(t, ledger, "u1", 0)
	ch := makeChallenge(t, svc, 2, 100, testDay.Add(-time.Hour), testDay.Add(24*time.Hour))

	if _, err := svc.Claim("u1", ch.ID); !errors.Is(err, ErrChallengeNotStarted) {
		t.Fatalf("claim before progress: %v, want ErrChallengeNotStarted", err)
	}

	if err := svc.RecordProgress("u1", ch.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Claim("u1", ch.ID); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("claim incomplete: %v, want ErrNotCompleted", err)
	}

	if err := svc.RecordProgress("u1", ch.ID, 1); err != nil {
		t.Fatal(err)
	}
	reward, err := svc.Claim("u1", ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reward.XP != 100 {
		t.Fatalf("reward = %d, want 100", reward.XP)
	}

	if _, err := svc.Claim("u1", ch.ID); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("double claim: %v, want ErrAlreadyClaimed", err)
	}
	total, _ := ledger.CurrentXP("u1")
	if total != 100 {
		t.Fatalf("xp after double claim = %d, want 100", total)
	}
}

func TestClaimWithBadgeReward(t *testing.T) {
	svc, ledger := newChallengeFixture(t)
	seedAccount(t, ledger, "u1", 0)
	ch := makeChallenge(t, svc, 1, 40, testDay.Add(-time.Hour), testDay.Add(24*time.Hour))
	svc.DB.Model(ch).Update("badge_reward", "staff_pick")

	if err := svc.RecordProgress("u1", ch.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Claim("u1", ch.ID); err != nil {
		t.Fatal(err)
	}

	var n int64
	svc.DB.Model(&models.BadgeAward{}).
		Where("account_id = ? AND badge_key = ?", "u1", "staff_pick").Count(&n)
	if n != 1 {
		t.Fatal("badge reward not awarded")
	}
	// 40 challenge XP + 25 earn-badge XP
	total, _ := ledger.CurrentXP("u1")
	if total != 65 {
		t.Fatalf("xp = %d, want 65", total)
	}
}

func TestExpireEnded(t *testing.T) {
	svc, _ := newChallengeFixture(t)
	makeChallenge(t, svc, 5, 100, testDay.Add(-48*time.Hour), testDay.Add(-time.Hour))
	makeChallenge(t, svc, 5, 100, testDay.Add(-time.Hour), testDay.Add(24*time.Hour))

	n, err := svc.ExpireEnded(testDay)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}

	active, err := svc.Active(testDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
}
