package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"nexus-progression-engine/models"
	"nexus-progression-engine/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// XPValues maps activity counters to the XP paid per unit of activity.
var XPValues = map[string]int64{
	"send_credits":         10,
	"receive_credits":      5,
	"volunteer_hour":       20,
	"create_listing":       15,
	"complete_transaction": 25,
	"leave_review":         10,
	"attend_event":         15,
	"create_event":         30,
	"join_group":           10,
	"create_post":          5,
	"daily_login":          5,
	"complete_profile":     50,
	"vote_poll":            2,
	"send_message":         2,
	"make_connection":      10,
}

// Counters that can only ever pay out once per account.
var onceOnlyCounters = map[string]bool{
	"complete_profile": true,
}

// streakCategoryFor maps counters onto their dedicated streak category.
// Every counter additionally feeds the general activity streak.
func streakCategoryFor(counter string) string {
	switch counter {
	case "daily_login":
		return models.StreakLogin
	case "volunteer_hour":
		return models.StreakVolunteering
	case "send_credits":
		return models.StreakGiving
	default:
		return ""
	}
}

// Engine is the facade the transport layer talks to. It owns the fan-out
// from a single activity event to counters, XP, streaks, badges, season
// scores and challenges.
type Engine struct {
	DB          *gorm.DB
	Ledger      *LedgerService
	Badges      *BadgeService
	Streaks     *StreakService
	Challenges  *ChallengeService
	Collections *CollectionService
	Shop        *ShopService
	Seasons     *SeasonService
	Campaigns   *CampaignService
	Clock       utils.Clock
}

// NewEngine wires every service plus the cross-service hooks: level-ups
// feed the level badges, badge awards feed collection bonuses.
func NewEngine(db *gorm.DB, clock utils.Clock) *Engine {
	ledger := NewLedgerService(db)
	badges := NewBadgeService(db, ledger)
	e := &Engine{
		DB:          db,
		Ledger:      ledger,
		Badges:      badges,
		Streaks:     NewStreakService(db, ledger, clock),
		Challenges:  NewChallengeService(db, ledger, badges, clock),
		Collections: NewCollectionService(db, ledger),
		Shop:        NewShopService(db, ledger),
		Seasons:     NewSeasonService(db, ledger, clock),
		Campaigns:   NewCampaignService(db, ledger, badges, clock),
		Clock:       clock,
	}

	ledger.SetLevelUpHook(func(accountID string, newLevel int) {
		if err := badges.Evaluate(accountID, "level", int64(newLevel)); err != nil {
			log.Printf("⚠️  Level badge check failed for %s: %v", accountID, err)
		}
	})
	ledger.SetGrantHook(e.mirrorSeasonXP)
	badges.SetAwardHook(e.Collections.OnBadgeAwarded)

	return e
}

// mirrorSeasonXP adds every applied positive grant to the current season
// score. Season payouts themselves are excluded so closing one season can
// never leak prize XP into the next; debits never reduce a season score.
func (e *Engine) mirrorSeasonXP(r *GrantResult) {
	if r.Entry.DeltaXP <= 0 || strings.HasPrefix(r.Entry.Source, "season:") {
		return
	}
	season, err := e.Seasons.Current(e.Clock.Now())
	if err != nil {
		log.Printf("⚠️  Season lookup failed: %v", err)
		return
	}
	if season == nil {
		return
	}
	if err := e.Seasons.AddXP(r.Entry.AccountID, season.ID, r.Entry.DeltaXP); err != nil {
		log.Printf("⚠️  Season score update failed for %s: %v", r.Entry.AccountID, err)
	}
}

// ReportEvent ingests one activity event and fans it out. The event id is
// the dedup key: a replayed id is acknowledged without changing anything.
// One-only counters (profile completion) additionally dedup on the
// account, whatever event id the caller retries with.
func (e *Engine) ReportEvent(accountID, counter string, amount int64, eventID string) (*GrantResult, error) {
	xpPer, known := XPValues[counter]
	if !known {
		return nil, fmt.Errorf("unknown activity counter: %s", counter)
	}
	if amount <= 0 {
		amount = 1
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	if _, err := e.Ledger.EnsureAccount(accountID); err != nil {
		return nil, err
	}

	now := e.Clock.Now()
	idemKey := "event:" + eventID
	if onceOnlyCounters[counter] {
		amount = 1
		idemKey = fmt.Sprintf("once:%s:%s", counter, accountID)
	}

	var grant *GrantResult
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		event := models.ActivityEvent{
			ID:          eventID,
			AccountID:   accountID,
			Counter:     counter,
			Amount:      amount,
			OccurredAt:  now,
			ProcessedAt: &now,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errReplayed
		}

		counterRow := models.ActivityCounter{AccountID: accountID, Counter: counter, Value: amount}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "counter"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("value + ?", amount)}),
		}).Create(&counterRow).Error; err != nil {
			return err
		}

		var err error
		grant, err = e.Ledger.GrantTx(tx, accountID, xpPer*amount, counter,
			activityDescription(counter, amount), idemKey)
		return err
	})
	if errors.Is(err, errReplayed) {
		return &GrantResult{Applied: false}, nil
	}
	if err != nil {
		return nil, err
	}
	e.Ledger.AfterGrant(grant)

	e.afterEvent(accountID, counter, amount, now)
	return grant, nil
}

// afterEvent runs the post-commit fan-out. Each leg is independently
// idempotent; a failed leg is logged and the rest still run. Season score
// mirroring is not a leg here — it rides on the ledger grant hook.
func (e *Engine) afterEvent(accountID, counter string, amount int64, now time.Time) {
	today := e.Clock.Today()
	categories := []string{models.StreakActivity}
	if cat := streakCategoryFor(counter); cat != "" {
		categories = append(categories, cat)
	}
	for _, cat := range categories {
		state, err := e.Streaks.Touch(accountID, cat, today)
		if err != nil {
			log.Printf("⚠️  Streak touch failed (%s/%s): %v", accountID, cat, err)
			continue
		}
		if cat == models.StreakLogin {
			if err := e.DB.Model(&models.Account{}).Where("id = ?", accountID).
				Update("last_login_at", now).Error; err != nil {
				log.Printf("⚠️  Last-login update failed for %s: %v", accountID, err)
			}
			if err := e.Badges.Evaluate(accountID, "login_streak", int64(state.CurrentStreak)); err != nil {
				log.Printf("⚠️  Streak badge check failed for %s: %v", accountID, err)
			}
		}
	}

	var counterRow models.ActivityCounter
	if err := e.DB.Where("account_id = ? AND counter = ?", accountID, counter).
		First(&counterRow).Error; err != nil {
		log.Printf("⚠️  Counter read-back failed (%s/%s): %v", accountID, counter, err)
	} else if err := e.Badges.Evaluate(accountID, counter, counterRow.Value); err != nil {
		log.Printf("⚠️  Badge check failed (%s/%s): %v", accountID, counter, err)
	}

	e.Challenges.RecordForCounter(accountID, counter, amount, now)
}

func activityDescription(counter string, amount int64) string {
	if amount == 1 {
		return "Activity: " + counter
	}
	return fmt.Sprintf("Activity: %s ×%d", counter, amount)
}

// Enqueue stores an event for the background worker instead of processing
// it inline. Used by callers that must not block on the fan-out.
func (e *Engine) Enqueue(accountID, counter string, amount int64, eventID string) error {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	if amount <= 0 {
		amount = 1
	}
	event := models.ActivityEvent{
		ID:         eventID,
		AccountID:  accountID,
		Counter:    counter,
		Amount:     amount,
		OccurredAt: e.Clock.Now(),
	}
	return e.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&event).Error
}

// ProcessStoredEvent runs the fan-out for an event previously stored by
// Enqueue. The processed_at flip is conditional, so the background worker
// and an inline caller racing on the same event settle on one winner.
func (e *Engine) ProcessStoredEvent(event models.ActivityEvent) error {
	xpPer, known := XPValues[event.Counter]
	if !known {
		return fmt.Errorf("unknown activity counter: %s", event.Counter)
	}
	if _, err := e.Ledger.EnsureAccount(event.AccountID); err != nil {
		return err
	}

	now := e.Clock.Now()
	idemKey := "event:" + event.ID
	amount := event.Amount
	if onceOnlyCounters[event.Counter] {
		amount = 1
		idemKey = fmt.Sprintf("once:%s:%s", event.Counter, event.AccountID)
	}

	var grant *GrantResult
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.ActivityEvent{}).
			Where("id = ? AND processed_at IS NULL", event.ID).
			Update("processed_at", &now)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return errReplayed
		}

		counterRow := models.ActivityCounter{AccountID: event.AccountID, Counter: event.Counter, Value: amount}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "counter"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("value + ?", amount)}),
		}).Create(&counterRow).Error; err != nil {
			return err
		}

		var err error
		grant, err = e.Ledger.GrantTx(tx, event.AccountID, xpPer*amount, event.Counter,
			activityDescription(event.Counter, amount), idemKey)
		return err
	})
	if errors.Is(err, errReplayed) {
		return nil
	}
	if err != nil {
		return err
	}
	e.Ledger.AfterGrant(grant)
	e.afterEvent(event.AccountID, event.Counter, amount, now)
	return nil
}

// Dashboard aggregates everything a profile page needs in one call.
type Dashboard struct {
	AccountID     string                  `json:"account_id"`
	TotalXP       int64                   `json:"total_xp"`
	Level         int                     `json:"level"`
	LevelPercent  float64                 `json:"level_percent"`
	XPToNext      int64                   `json:"xp_to_next"`
	Badges        []models.BadgeAward     `json:"badges"`
	BadgeProgress []BadgeProgress         `json:"badge_progress"`
	Streaks       []models.StreakState    `json:"streaks"`
	DailyReward   *DailyRewardStatus      `json:"daily_reward"`
	Challenges    []ChallengeWithProgress `json:"challenges"`
	SeasonRank    *RankedScore            `json:"season_rank,omitempty"`
}

func (e *Engine) BuildDashboard(accountID string) (*Dashboard, error) {
	acct, err := e.Ledger.EnsureAccount(accountID)
	if err != nil {
		return nil, err
	}

	level, percent, toNext := LevelProgress(acct.TotalXP)
	d := &Dashboard{
		AccountID:    accountID,
		TotalXP:      acct.TotalXP,
		Level:        level,
		LevelPercent: percent,
		XPToNext:     toNext,
	}

	if d.Badges, err = e.Badges.Awards(accountID); err != nil {
		return nil, err
	}
	if d.BadgeProgress, err = e.Badges.Progress(accountID); err != nil {
		return nil, err
	}
	if d.Streaks, err = e.Streaks.States(accountID); err != nil {
		return nil, err
	}
	if d.DailyReward, err = e.Streaks.DailyStatus(accountID); err != nil {
		return nil, err
	}

	now := e.Clock.Now()
	if d.Challenges, err = e.Challenges.WithProgress(accountID, now); err != nil {
		return nil, err
	}
	season, err := e.Seasons.Current(now)
	if err != nil {
		return nil, err
	}
	if season != nil {
		rank, err := e.Seasons.Rank(accountID, season.ID)
		if err != nil {
			return nil, err
		}
		d.SeasonRank = &rank
	}
	return d, nil
}
