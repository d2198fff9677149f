package services

import (
	"testing"
	"time"

	"nexus-progression-engine/models"
	"nexus-progression-engine/utils"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.LedgerEntry{},
		&models.ActivityCounter{},
		&models.ActivityEvent{},
		&models.BadgeDefinition{},
		&models.BadgeAward{},
		&models.BadgeFirstHolder{},
		&models.ShowcaseSelection{},
		&models.StreakState{},
		&models.DailyRewardClaim{},
		&models.Challenge{},
		&models.ChallengeProgress{},
		&models.Collection{},
		&models.CollectionBadge{},
		&models.CollectionBonusAward{},
		&models.ShopItem{},
		&models.Purchase{},
		&models.Season{},
		&models.SeasonScore{},
		&models.RankSnapshot{},
		&models.Campaign{},
		&models.CampaignRun{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// testDay is an arbitrary fixed Monday used wherever a test needs "now".
var testDay = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(newTestDB(t), utils.FixedClock{T: testDay})
}

func seedAccount(t *testing.T, ledger *LedgerService, accountID string, xp int64) {
	t.Helper()
	if _, err := ledger.EnsureAccount(accountID); err != nil {
		t.Fatalf("ensure account %s: %v", accountID, err)
	}
	if xp > 0 {
		if _, err := ledger.Grant(accountID, xp, "seed", "test seed", "seed:"+accountID); err != nil {
			t.Fatalf("seed xp for %s: %v", accountID, err)
		}
	}
}
