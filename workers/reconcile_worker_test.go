package workers

import (
	"testing"

	"nexus-progression-engine/models"
	"nexus-progression-engine/services"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestReconcileHealsDrift(t *testing.T) {
	db := newWorkerDB(t)
	ledger := services.NewLedgerService(db)

	if _, err := ledger.EnsureAccount("u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Grant("u1", 700, "test", "", "k1"); err != nil {
		t.Fatal(err)
	}

	// corrupt the cache
	if err := db.Model(&models.Account{}).Where("id = ?", "u1").
		Updates(map[string]interface{}{"total_xp": 123, "level": 1}).Error; err != nil {
		t.Fatal(err)
	}

	if err := NewReconcileWorker(db).ReconcileAll(); err != nil {
		t.Fatal(err)
	}

	var acct models.Account
	db.First(&acct, "id = ?", "u1")
	if acct.TotalXP != 700 {
		t.Fatalf("total_xp = %d, want 700", acct.TotalXP)
	}
	if acct.Level != services.LevelForXP(700) {
		t.Fatalf("level = %d, want %d", acct.Level, services.LevelForXP(700))
	}
}

func TestReconcileLeavesConsistentAlone(t *testing.T) {
	db := newWorkerDB(t)
	ledger := services.NewLedgerService(db)

	if _, err := ledger.EnsureAccount("u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Grant("u1", 50, "test", "", "k1"); err != nil {
		t.Fatal(err)
	}

	if err := NewReconcileWorker(db).ReconcileAll(); err != nil {
		t.Fatal(err)
	}

	var acct models.Account
	db.First(&acct, "id = ?", "u1")
	if acct.TotalXP != 50 {
		t.Fatalf("total_xp = %d, want 50", acct.TotalXP)
	}
}
