package models

import "time"

// Collection: a fixed set of badges worth a bonus when fully earned.
type Collection struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	BonusXP     int64     `gorm:"not null" json:"bonus_xp"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CollectionBadge: membership of a badge key in a collection.
type CollectionBadge struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CollectionID string `gorm:"not null;uniqueIndex:uniq_collection_badge" json:"collection_id"`
	BadgeKey     string `gorm:"not null;uniqueIndex:uniq_collection_badge;index" json:"badge_key"`
}

// CollectionBonusAward guards the bonus from being granted twice: the
// insert-or-ignore on this row is the atomicity boundary.
type CollectionBonusAward struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID    string    `gorm:"not null;uniqueIndex:uniq_collection_bonus" json:"account_id"`
	CollectionID string    `gorm:"not null;uniqueIndex:uniq_collection_bonus" json:"collection_id"`
	AwardedAt    time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}
