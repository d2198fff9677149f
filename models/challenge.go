package models

import "time"

type ChallengeType string

const (
	ChallengeDaily    ChallengeType = "daily"
	ChallengeWeekly   ChallengeType = "weekly"
	ChallengeSeasonal ChallengeType = "seasonal"
	ChallengeCustom   ChallengeType = "custom"
)

// Challenge: time-boxed target on a named counter. Completion is detected
// while recording progress; the XP reward is paid only on explicit claim.
type Challenge struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `json:"description"`
	Type        ChallengeType `gorm:"not null;default:'weekly';index" json:"type"`
	Counter     string        `gorm:"not null;index" json:"counter"` // e.g., "create_listing"
	Target      int64         `gorm:"not null" json:"target"`
	XPReward    int64         `gorm:"not null" json:"xp_reward"`
	BadgeReward string        `json:"badge_reward,omitempty"` // optional badge key granted on claim
	StartsAt    time.Time     `gorm:"index" json:"starts_at"`
	EndsAt      time.Time     `gorm:"index" json:"ends_at"`
	IsActive    bool          `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// ChallengeProgress: (account, challenge) unique. Count is clamped to the
// target and never moves after the challenge ends.
type ChallengeProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AccountID   string     `gorm:"not null;uniqueIndex:uniq_account_challenge" json:"account_id"`
	ChallengeID string     `gorm:"not null;uniqueIndex:uniq_account_challenge;index" json:"challenge_id"`
	Count       int64      `gorm:"default:0" json:"count"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	Claimed     bool       `gorm:"default:false" json:"claimed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
