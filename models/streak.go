package models

import "time"

// Streak categories tracked per account. "daily" backs the daily reward
// claim flow; the rest are incremented from reported events.
const (
	StreakLogin        = "login"
	StreakActivity     = "activity"
	StreakGiving       = "giving"
	StreakVolunteering = "volunteering"
	StreakDaily        = "daily"
)

// StreakState: consecutive-calendar-day counter per (account, category).
// LastDate is a tenant-local calendar day stored as "2006-01-02".
type StreakState struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AccountID     string     `gorm:"not null;uniqueIndex:uniq_account_streak" json:"account_id"`
	Category      string     `gorm:"not null;uniqueIndex:uniq_account_streak" json:"category"`
	CurrentStreak int        `gorm:"default:0" json:"current_streak"`
	LongestStreak int        `gorm:"default:0" json:"longest_streak"`
	LastDate      string     `gorm:"size:10" json:"last_date"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DailyRewardClaim: one row per (account, calendar day). The unique pair is
// the claim gate — a second claim the same day hits the constraint.
type DailyRewardClaim struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID  string    `gorm:"not null;uniqueIndex:uniq_daily_claim" json:"account_id"`
	RewardDate string    `gorm:"size:10;not null;uniqueIndex:uniq_daily_claim" json:"reward_date"`
	XPEarned   int64     `json:"xp_earned"`
	StreakDay  int       `json:"streak_day"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
