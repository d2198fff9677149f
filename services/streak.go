package services

import (
	"fmt"

	"nexus-progression-engine/models"
	"nexus-progression-engine/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyRewardTiers: XP by consecutive claim day, capped at the last entry.
var DailyRewardTiers = []int64{
	10,  // day 1 (base)
	15,  // day 2
	25,  // day 3
	35,  // day 4
	50,  // day 5
	70,  // day 6
	100, // day 7+
}

// DailyRewardFor returns the XP for the given streak day.
func DailyRewardFor(streakDay int) int64 {
	if streakDay < 1 {
		streakDay = 1
	}
	if streakDay > len(DailyRewardTiers) {
		streakDay = len(DailyRewardTiers)
	}
	return DailyRewardTiers[streakDay-1]
}

type StreakService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Clock  utils.Clock
}

func NewStreakService(db *gorm.DB, ledger *LedgerService, clock utils.Clock) *StreakService {
	return &StreakService{DB: db, Ledger: ledger, Clock: clock}
}

// Touch applies the streak transition for an event on calendar day `day`:
// same day → no-op; previous day → increment (and raise the longest-streak
// watermark); anything else → reset to 1. All transitions are conditional
// UPDATEs keyed on the stored last_date, so concurrent events for the same
// account cannot lose updates.
func (s *StreakService) Touch(accountID, category, day string) (*models.StreakState, error) {
	var state models.StreakState
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		ts, err := s.TouchTx(tx, accountID, category, day)
		if err != nil {
			return err
		}
		state = *ts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// TouchTx is Touch inside a caller-owned transaction.
func (s *StreakService) TouchTx(tx *gorm.DB, accountID, category, day string) (*models.StreakState, error) {
	now := s.Clock.Now()
	fresh := models.StreakState{
		AccountID:     accountID,
		Category:      category,
		CurrentStreak: 1,
		LongestStreak: 1,
		LastDate:      day,
		StartedAt:     &now,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "category"}},
		DoNothing: true,
	}).Create(&fresh)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		prev := utils.PrevDay(day)

		// Consecutive day: extend the streak.
		inc := tx.Model(&models.StreakState{}).
			Where("account_id = ? AND category = ? AND last_date = ?", accountID, category, prev).
			Updates(map[string]interface{}{
				"current_streak": gorm.Expr("current_streak + 1"),
				"longest_streak": gorm.Expr("CASE WHEN current_streak + 1 > longest_streak THEN current_streak + 1 ELSE longest_streak END"),
				"last_date":      day,
			})
		if inc.Error != nil {
			return nil, inc.Error
		}

		if inc.RowsAffected == 0 {
			// Gap (or stale replay): reset, but only if the stored day is
			// actually older — an event for today that lost the race is a
			// no-op, not a reset.
			reset := tx.Model(&models.StreakState{}).
				Where("account_id = ? AND category = ? AND last_date < ?", accountID, category, prev).
				Updates(map[string]interface{}{
					"current_streak": 1,
					"last_date":      day,
					"started_at":     &now,
				})
			if reset.Error != nil {
				return nil, reset.Error
			}
		}
	}

	var state models.StreakState
	if err := tx.Where("account_id = ? AND category = ?", accountID, category).First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// States returns all streaks for an account.
func (s *StreakService) States(accountID string) ([]models.StreakState, error) {
	var states []models.StreakState
	err := s.DB.Where("account_id = ?", accountID).Find(&states).Error
	return states, err
}

// EffectiveStreak is the display value: a stored streak whose last day is
// before yesterday has lapsed and reads as 0 (the row is corrected lazily
// on the next event).
func (s *StreakService) EffectiveStreak(state *models.StreakState, today string) int {
	if state == nil {
		return 0
	}
	if state.LastDate == today || state.LastDate == utils.PrevDay(today) {
		return state.CurrentStreak
	}
	return 0
}

// DailyRewardStatus is the read side of the daily claim flow.
type DailyRewardStatus struct {
	ClaimedToday  bool  `json:"claimed_today"`
	CurrentStreak int   `json:"current_streak"`
	NextReward    int64 `json:"next_reward"`
}

func (s *StreakService) DailyStatus(accountID string) (*DailyRewardStatus, error) {
	today := s.Clock.Today()

	var claimed int64
	if err := s.DB.Model(&models.DailyRewardClaim{}).
		Where("account_id = ? AND reward_date = ?", accountID, today).
		Count(&claimed).Error; err != nil {
		return nil, err
	}

	var state models.StreakState
	err := s.DB.Where("account_id = ? AND category = ?", accountID, models.StreakDaily).First(&state).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	streak := s.EffectiveStreak(&state, today)
	next := DailyRewardFor(streak + 1)
	if claimed > 0 {
		next = DailyRewardFor(streak)
	}

	return &DailyRewardStatus{
		ClaimedToday:  claimed > 0,
		CurrentStreak: streak,
		NextReward:    next,
	}, nil
}

// RewardResult is what a successful daily claim pays out.
type RewardResult struct {
	XP        int64 `json:"xp"`
	StreakDay int   `json:"streak_day"`
}

// ClaimDaily claims today's reward exactly once per account per calendar
// day. The insert on (account, reward_date) is the claim gate: a concurrent
// double-submit loses the insert and gets ErrAlreadyClaimed with no XP
// movement.
func (s *StreakService) ClaimDaily(accountID string) (*RewardResult, error) {
	today := s.Clock.Today()

	var result RewardResult
	var grant *GrantResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		claim := models.DailyRewardClaim{
			ID:         uuid.NewString(),
			AccountID:  accountID,
			RewardDate: today,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "reward_date"}},
			DoNothing: true,
		}).Create(&claim)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		state, err := s.TouchTx(tx, accountID, models.StreakDaily, today)
		if err != nil {
			return err
		}

		xp := DailyRewardFor(state.CurrentStreak)
		idemKey := fmt.Sprintf("daily:%s:%s", accountID, today)
		grant, err = s.Ledger.GrantTx(tx, accountID, xp, "daily-reward",
			fmt.Sprintf("Daily reward, day %d", state.CurrentStreak), idemKey)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.DailyRewardClaim{}).Where("id = ?", claim.ID).
			Updates(map[string]interface{}{"xp_earned": xp, "streak_day": state.CurrentStreak}).Error; err != nil {
			return err
		}

		result = RewardResult{XP: xp, StreakDay: state.CurrentStreak}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Ledger.AfterGrant(grant)
	return &result, nil
}

// ClaimedOn reports whether the account claimed on the given day.
func (s *StreakService) ClaimedOn(accountID, day string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.DailyRewardClaim{}).
		Where("account_id = ? AND reward_date = ?", accountID, day).
		Count(&n).Error
	return n > 0, err
}
