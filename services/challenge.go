package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"nexus-progression-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChallengeService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Badges *BadgeService
	Clock  interface{ Now() time.Time }
}

func NewChallengeService(db *gorm.DB, ledger *LedgerService, badges *BadgeService, clock interface{ Now() time.Time }) *ChallengeService {
	return &ChallengeService{DB: db, Ledger: ledger, Badges: badges, Clock: clock}
}

func (s *ChallengeService) Get(challengeID string) (*models.Challenge, error) {
	var ch models.Challenge
	if err := s.DB.First(&ch, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownChallenge, challengeID)
		}
		return nil, err
	}
	return &ch, nil
}

// Active returns challenges currently running at t.
func (s *ChallengeService) Active(t time.Time) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.DB.Where("is_active = ? AND starts_at <= ? AND ends_at > ?", true, t, t).
		Order("ends_at ASC").
		Find(&challenges).Error
	return challenges, err
}

// RecordProgress adds delta toward a challenge target. Silently ignored when
// the challenge has ended or the account is already at target; the count is
// clamped to the target and completion is latched, never un-set. Completion
// does not pay the reward — that happens on Claim.
func (s *ChallengeService) RecordProgress(accountID, challengeID string, delta int64) error {
	if delta <= 0 {
		return nil
	}

	ch, err := s.Get(challengeID)
	if err != nil {
		return err
	}
	now := s.Clock.Now()
	if !ch.IsActive || now.Before(ch.StartsAt) || !now.Before(ch.EndsAt) {
		return nil // expired or not yet open: progress is never recorded
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		fresh := models.ChallengeProgress{AccountID: accountID, ChallengeID: challengeID}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "challenge_id"}},
			DoNothing: true,
		}).Create(&fresh)
		if res.Error != nil {
			return res.Error
		}

		// Clamp-and-add in one conditional statement so concurrent events
		// cannot push the count past the target.
		add := tx.Model(&models.ChallengeProgress{}).
			Where("account_id = ? AND challenge_id = ? AND count < ?", accountID, challengeID, ch.Target).
			Update("count", gorm.Expr("CASE WHEN count + ? > ? THEN ? ELSE count + ? END", delta, ch.Target, ch.Target, delta))
		if add.Error != nil {
			return add.Error
		}
		if add.RowsAffected == 0 {
			return nil // already at target
		}

		now := s.Clock.Now()
		return tx.Model(&models.ChallengeProgress{}).
			Where("account_id = ? AND challenge_id = ? AND count >= ? AND completed = ?", accountID, challengeID, ch.Target, false).
			Updates(map[string]interface{}{"completed": true, "completed_at": &now}).Error
	})
}

// RecordForCounter routes a counter event to every matching active
// challenge. Per-challenge failures are logged, not fatal — one bad
// challenge must not block the event.
func (s *ChallengeService) RecordForCounter(accountID, counter string, delta int64, t time.Time) {
	challenges, err := s.Active(t)
	if err != nil {
		log.Printf("⚠️  Challenge lookup failed for counter %s: %v", counter, err)
		return
	}
	for _, ch := range challenges {
		if ch.Counter != counter {
			continue
		}
		if err := s.RecordProgress(accountID, ch.ID, delta); err != nil {
			log.Printf("⚠️  Challenge progress failed (%s → %s): %v", accountID, ch.ID, err)
		}
	}
}

// Claim pays out a completed challenge exactly once. The claimed flag flips
// under a conditional update; the XP grant is keyed on account+challenge so
// a retried claim cannot double-pay.
func (s *ChallengeService) Claim(accountID, challengeID string) (*RewardResult, error) {
	ch, err := s.Get(challengeID)
	if err != nil {
		return nil, err
	}

	var grant *GrantResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var progress models.ChallengeProgress
		if err := tx.Where("account_id = ? AND challenge_id = ?", accountID, challengeID).
			First(&progress).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChallengeNotStarted
			}
			return err
		}
		if !progress.Completed {
			return ErrNotCompleted
		}

		now := s.Clock.Now()
		flip := tx.Model(&models.ChallengeProgress{}).
			Where("account_id = ? AND challenge_id = ? AND claimed = ?", accountID, challengeID, false).
			Updates(map[string]interface{}{"claimed": true, "claimed_at": &now})
		if flip.Error != nil {
			return flip.Error
		}
		if flip.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		idemKey := fmt.Sprintf("challenge:%s:%s", accountID, challengeID)
		grant, err = s.Ledger.GrantTx(tx, accountID, ch.XPReward, "challenge:"+ch.ID,
			"Completed challenge: "+ch.Title, idemKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Ledger.AfterGrant(grant)

	// Optional badge reward rides along after the claim committed; the
	// award path is idempotent on its own.
	if ch.BadgeReward != "" {
		if _, err := s.Badges.Award(accountID, ch.BadgeReward); err != nil {
			log.Printf("⚠️  Challenge badge reward failed (%s → %s): %v", accountID, ch.BadgeReward, err)
		}
	}

	return &RewardResult{XP: ch.XPReward}, nil
}

// ChallengeWithProgress pairs a challenge with one account's progress row.
type ChallengeWithProgress struct {
	models.Challenge
	Count     int64 `json:"count"`
	Completed bool  `json:"completed"`
	Claimed   bool  `json:"claimed"`
}

// WithProgress lists currently active challenges annotated with the
// account's progress.
func (s *ChallengeService) WithProgress(accountID string, t time.Time) ([]ChallengeWithProgress, error) {
	challenges, err := s.Active(t)
	if err != nil {
		return nil, err
	}

	var rows []models.ChallengeProgress
	if err := s.DB.Where("account_id = ?", accountID).Find(&rows).Error; err != nil {
		return nil, err
	}
	byChallenge := map[string]models.ChallengeProgress{}
	for _, row := range rows {
		byChallenge[row.ChallengeID] = row
	}

	out := make([]ChallengeWithProgress, 0, len(challenges))
	for _, ch := range challenges {
		p := byChallenge[ch.ID]
		out = append(out, ChallengeWithProgress{
			Challenge: ch,
			Count:     p.Count,
			Completed: p.Completed,
			Claimed:   p.Claimed,
		})
	}
	return out, nil
}

// ExpireEnded deactivates challenges past their end date. Run from the
// daily maintenance job; progress against them is already refused by
// RecordProgress regardless.
func (s *ChallengeService) ExpireEnded(t time.Time) (int64, error) {
	res := s.DB.Model(&models.Challenge{}).
		Where("is_active = ? AND ends_at <= ?", true, t).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
