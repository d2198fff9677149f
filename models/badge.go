package models

import (
	"time"
)

// BadgeDefinition: static config, admin-managed, read-mostly.
// Award condition is either a threshold on a named counter or manual-only.
type BadgeDefinition struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	Key            string    `gorm:"uniqueIndex;not null" json:"key"` // e.g., "vol_10h", "streak_7"
	Name           string    `gorm:"not null" json:"name"`
	Description    string    `json:"description"`
	Icon           string    `json:"icon"`                      // emoji shown inline
	IconURL        string    `gorm:"type:text" json:"icon_url"` // uploaded image, R2/CDN
	Category       string    `gorm:"index" json:"category"`     // vol, offer, earn, spend, streak, level, ...
	Counter        string    `gorm:"index" json:"counter"`      // named counter the threshold applies to; empty for manual-only
	Threshold      int64     `json:"threshold"`
	ManualOnly     bool      `gorm:"default:false" json:"manual_only"`
	RarityEligible bool      `json:"rarity_eligible"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BadgeAward: at most one per (account, badge), ever. Re-earning is a no-op.
type BadgeAward struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string    `gorm:"not null;uniqueIndex:uniq_account_badge" json:"account_id"`
	BadgeKey  string    `gorm:"not null;uniqueIndex:uniq_account_badge;index" json:"badge_key"`
	First     bool      `gorm:"default:false" json:"first"` // first holder platform-wide
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

// BadgeFirstHolder: one row per badge, claimed by whichever award lands
// first. The primary key is the uniqueness guarantee — two concurrent
// first awards race on the insert and exactly one wins the tag.
type BadgeFirstHolder struct {
	BadgeKey  string    `gorm:"primaryKey" json:"badge_key"`
	AccountID string    `gorm:"not null" json:"account_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ShowcaseSelection: ordered subset of owned badges pinned to the profile.
type ShowcaseSelection struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID string `gorm:"not null;uniqueIndex:uniq_showcase_pos;uniqueIndex:uniq_showcase_key" json:"account_id"`
	BadgeKey  string `gorm:"not null;uniqueIndex:uniq_showcase_key" json:"badge_key"`
	Position  int    `gorm:"not null;uniqueIndex:uniq_showcase_pos" json:"position"`
}

// MaxShowcaseSize caps the showcase per profile surface.
const MaxShowcaseSize = 5

// DefaultBadges seed the definitions table on boot (insert-or-ignore, so
// admin edits survive restarts).
var DefaultBadges = []BadgeDefinition{
	// Volunteering (hours)
	{Key: "vol_1h", Name: "First Steps", Icon: "👣", Category: "vol", Counter: "volunteer_hour", Threshold: 1, RarityEligible: true},
	{Key: "vol_10h", Name: "Helping Hand", Icon: "🤲", Category: "vol", Counter: "volunteer_hour", Threshold: 10, RarityEligible: true},
	{Key: "vol_50h", Name: "Change Maker", Icon: "🌍", Category: "vol", Counter: "volunteer_hour", Threshold: 50, RarityEligible: true},
	{Key: "vol_100h", Name: "TimeBank Legend", Icon: "👑", Category: "vol", Counter: "volunteer_hour", Threshold: 100, RarityEligible: true},
	{Key: "vol_250h", Name: "Volunteer Hero", Icon: "🦸", Category: "vol", Counter: "volunteer_hour", Threshold: 250, RarityEligible: true},

	// Listings
	{Key: "offer_1", Name: "First Offer", Icon: "🎁", Category: "offer", Counter: "create_listing", Threshold: 1, RarityEligible: true},
	{Key: "offer_5", Name: "Generous Soul", Icon: "🤝", Category: "offer", Counter: "create_listing", Threshold: 5, RarityEligible: true},
	{Key: "offer_10", Name: "Gift Giver", Icon: "🎀", Category: "offer", Counter: "create_listing", Threshold: 10, RarityEligible: true},
	{Key: "offer_25", Name: "Offer Master", Icon: "🌟", Category: "offer", Counter: "create_listing", Threshold: 25, RarityEligible: true},

	// Timebanking — earning / spending credits
	{Key: "earn_1", Name: "First Earn", Icon: "🪙", Category: "earn", Counter: "receive_credits", Threshold: 1, RarityEligible: true},
	{Key: "earn_10", Name: "Go Getter", Icon: "🚀", Category: "earn", Counter: "receive_credits", Threshold: 10, RarityEligible: true},
	{Key: "earn_50", Name: "Credit Builder", Icon: "⚡", Category: "earn", Counter: "receive_credits", Threshold: 50, RarityEligible: true},
	{Key: "earn_100", Name: "Centurion", Icon: "💯", Category: "earn", Counter: "receive_credits", Threshold: 100, RarityEligible: true},
	{Key: "spend_1", Name: "First Spend", Icon: "💸", Category: "spend", Counter: "send_credits", Threshold: 1, RarityEligible: true},
	{Key: "spend_10", Name: "Active Spender", Icon: "💳", Category: "spend", Counter: "send_credits", Threshold: 10, RarityEligible: true},
	{Key: "spend_50", Name: "Generous Spender", Icon: "🎊", Category: "spend", Counter: "send_credits", Threshold: 50, RarityEligible: true},

	// Community
	{Key: "event_1", Name: "First Event", Icon: "🎪", Category: "event", Counter: "attend_event", Threshold: 1, RarityEligible: true},
	{Key: "event_10", Name: "Regular", Icon: "🎟️", Category: "event", Counter: "attend_event", Threshold: 10, RarityEligible: true},
	{Key: "group_1", Name: "Joiner", Icon: "👥", Category: "group", Counter: "join_group", Threshold: 1, RarityEligible: true},
	{Key: "post_10", Name: "Conversationalist", Icon: "💬", Category: "post", Counter: "create_post", Threshold: 10, RarityEligible: true},
	{Key: "connect_5", Name: "Networker", Icon: "🔗", Category: "connection", Counter: "make_connection", Threshold: 5, RarityEligible: true},

	// Streak milestones (login_streak is maintained by the streak tracker)
	{Key: "streak_7", Name: "One Week Strong", Icon: "🔥", Category: "streak", Counter: "login_streak", Threshold: 7, RarityEligible: true},
	{Key: "streak_30", Name: "Monthly Devotee", Icon: "🌙", Category: "streak", Counter: "login_streak", Threshold: 30, RarityEligible: true},
	{Key: "streak_90", Name: "Quarter Champion", Icon: "🏆", Category: "streak", Counter: "login_streak", Threshold: 90, RarityEligible: true},
	{Key: "streak_365", Name: "Year of Dedication", Icon: "🎉", Category: "streak", Counter: "login_streak", Threshold: 365, RarityEligible: true},

	// Level milestones
	{Key: "level_5", Name: "Rising Star", Icon: "⭐", Category: "level", Counter: "level", Threshold: 5, RarityEligible: true},
	{Key: "level_10", Name: "Community Pillar", Icon: "🏛️", Category: "level", Counter: "level", Threshold: 10, RarityEligible: true},

	// Manual / admin only
	{Key: "founder", Name: "Founding Member", Icon: "🏅", Category: "special", ManualOnly: true, RarityEligible: false},
	{Key: "staff_pick", Name: "Staff Pick", Icon: "📌", Category: "special", ManualOnly: true, RarityEligible: false},
}
