package models

import "time"

// LedgerEntry is the append-only record of every XP mutation. The sum of
// DeltaXP per account equals the account's lifetime XP; IdempotencyKey makes
// retried grants no-ops.
type LedgerEntry struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID      string    `gorm:"index;not null" json:"account_id"`
	DeltaXP        int64     `gorm:"not null" json:"delta_xp"`
	Source         string    `gorm:"index;not null" json:"source"` // badge key, challenge id, daily-reward, campaign id, manual-admin
	Description    string    `json:"description"`
	IdempotencyKey string    `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
