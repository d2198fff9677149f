package models

import "time"

type SeasonStatus string

const (
	SeasonActive    SeasonStatus = "active"
	SeasonCompleted SeasonStatus = "completed"
)

// Season: a time-boxed leaderboard period. Lifetime XP is untouched by
// season boundaries; only SeasonScore resets with a new season.
type Season struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	StartsAt    time.Time    `gorm:"index" json:"starts_at"`
	EndsAt      time.Time    `gorm:"index" json:"ends_at"`
	Status      SeasonStatus `gorm:"not null;default:'active';index" json:"status"`
	FinalizedAt *time.Time   `json:"finalized_at,omitempty"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// SeasonScore: season-scoped XP accumulator. CreatedAt breaks ranking ties —
// first to reach a score outranks later arrivals at the same score.
type SeasonScore struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID string    `gorm:"not null;uniqueIndex:uniq_account_season" json:"account_id"`
	SeasonID  string    `gorm:"not null;uniqueIndex:uniq_account_season;index" json:"season_id"`
	XP        int64     `gorm:"default:0" json:"xp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RankSnapshot: daily frozen standings, also the record of final season
// placement. Unique per (season, day, account) so re-running the snapshot
// job is harmless.
type RankSnapshot struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SeasonID     string    `gorm:"not null;uniqueIndex:uniq_snapshot" json:"season_id"`
	SnapshotDate string    `gorm:"size:10;not null;uniqueIndex:uniq_snapshot" json:"snapshot_date"`
	AccountID    string    `gorm:"not null;uniqueIndex:uniq_snapshot" json:"account_id"`
	Position     int       `gorm:"not null" json:"position"`
	XP           int64     `gorm:"not null" json:"xp"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
