package models

import "time"

type CampaignType string

const (
	CampaignOneTime   CampaignType = "one_time"
	CampaignRecurring CampaignType = "recurring"
	CampaignTriggered CampaignType = "triggered"
)

// Audience predicate kinds — a closed set, validated when the campaign is
// loaded, never re-interpreted per request.
type AudienceKind string

const (
	AudienceAllActive   AudienceKind = "all_active"
	AudienceJoined30d   AudienceKind = "joined_30d"
	AudienceActive7d    AudienceKind = "active_7d"
	AudienceInactive30d AudienceKind = "inactive_30d"
	AudienceLevelRange  AudienceKind = "level_range"
	AudienceHoldsBadge  AudienceKind = "holds_badge"
)

// Campaign: admin-defined bulk grant over an audience segment. Recurrence is
// the scheduler's concern — the engine only sees explicit tick identifiers.
type Campaign struct {
	ID       string       `gorm:"primaryKey;type:uuid" json:"id"`
	Key      string       `gorm:"uniqueIndex;not null" json:"key"` // slug, used in ledger sources
	Name     string       `gorm:"not null" json:"name"`
	Type     CampaignType `gorm:"not null;default:'one_time'" json:"type"`
	Schedule string       `json:"schedule,omitempty"` // informational; ticks come from the caller

	AudienceKind     AudienceKind `gorm:"not null" json:"audience_kind"`
	AudienceMinLevel int          `json:"audience_min_level,omitempty"`
	AudienceMaxLevel int          `json:"audience_max_level,omitempty"`
	AudienceBadgeKey string       `json:"audience_badge_key,omitempty"`

	GrantXP       int64  `json:"grant_xp,omitempty"`
	GrantBadgeKey string `json:"grant_badge_key,omitempty"`

	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CampaignRun: uniqueness on (campaign, tick, account) is the re-run guard —
// a retried or crashed tick cannot double-grant the same account.
type CampaignRun struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID string    `gorm:"not null;uniqueIndex:uniq_campaign_run" json:"campaign_id"`
	Tick       string    `gorm:"not null;uniqueIndex:uniq_campaign_run" json:"tick"`
	AccountID  string    `gorm:"not null;uniqueIndex:uniq_campaign_run" json:"account_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
