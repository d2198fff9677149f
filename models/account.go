package models

import (
	"time"

	"gorm.io/gorm"
)

// Account mirrors a platform member inside the progression engine.
// TotalXP and Level are caches over the ledger — the ledger sum is
// authoritative and the reconcile worker heals any drift.
type Account struct {
	ID          string  `gorm:"primaryKey" json:"id"` // external user id from the platform
	TotalXP     int64   `gorm:"default:0" json:"total_xp"`
	Level       int     `gorm:"default:1" json:"level"`
	TimeCredits float64 `gorm:"default:0" json:"time_credits"` // mirror of the timebank balance, display only
	IsActive    bool    `gorm:"default:true;index" json:"is_active"`

	JoinedAt      time.Time  `json:"joined_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
