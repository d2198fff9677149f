package models

import "time"

// ShopItem: purchasable with XP. Nil Stock means unlimited; non-repeatable
// items may be owned at most once per account.
type ShopItem struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	CostXP      int64     `gorm:"not null" json:"cost_xp"`
	Stock       *int      `json:"stock,omitempty"`
	Repeatable  bool      `gorm:"default:false" json:"repeatable"`
	Available   bool      `gorm:"default:true;index" json:"available"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Purchase: one row per successful buy. AttemptID is the caller-supplied
// retry token; OwnershipKey is "account:item" for non-repeatable items and
// NULL otherwise, so the unique index enforces single ownership without
// blocking repeat purchases of consumables.
type Purchase struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID    string    `gorm:"index;not null" json:"account_id"`
	ItemID       string    `gorm:"index;not null" json:"item_id"`
	CostXP       int64     `gorm:"not null" json:"cost_xp"`
	AttemptID    string    `gorm:"uniqueIndex;not null" json:"attempt_id"`
	OwnershipKey *string   `gorm:"uniqueIndex" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
