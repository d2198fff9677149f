package models

import "time"

// ActivityCounter holds the running total of a named counter per account
// (volunteer_hour, create_listing, send_credits, ...). Collaborators report
// increments; badge thresholds and challenge progress read from here.
type ActivityCounter struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID string    `gorm:"not null;uniqueIndex:uniq_account_counter" json:"account_id"`
	Counter   string    `gorm:"not null;uniqueIndex:uniq_account_counter;index" json:"counter"`
	Value     int64     `gorm:"default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ActivityEvent is the inbound outbox row: collaborators insert, the event
// worker drains. EventID doubles as the XP grant idempotency key so a
// crashed worker can safely re-deliver.
type ActivityEvent struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"` // caller-supplied, any stable token
	AccountID   string     `gorm:"index;not null" json:"account_id"`
	Counter     string     `gorm:"not null" json:"counter"`
	Amount      int64      `gorm:"default:1" json:"amount"`
	OccurredAt  time.Time  `json:"occurred_at"`
	ProcessedAt *time.Time `gorm:"index" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
