package services

import (
	"errors"
	"testing"

	"nexus-progression-engine/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newShopFixture(t *testing.T) (*ShopService, *LedgerService) {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	return NewShopService(db, ledger), ledger
}

func makeItem(t *testing.T, svc *ShopService, cost int64, stock *int, repeatable bool) *models.ShopItem {
	t.Helper()
	item := models.ShopItem{
		ID:         uuid.NewString(),
		Name:       "Profile Frame",
		CostXP:     cost,
		Stock:      stock,
		Repeatable: repeatable,
		Available:  true,
	}
	if err := svc.CreateItem(&item); err != nil {
		t.Fatal(err)
	}
	return &item
}

func intptr(n int) *int { return &n }

func TestPurchaseHappyPath(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 100)
	item := makeItem(t, svc, 60, nil, false)

	p, err := svc.Purchase("u1", item.ID, "attempt-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.CostXP != 60 {
		t.Fatalf("cost = %d, want 60", p.CostXP)
	}
	total, _ := ledger.CurrentXP("u1")
	if total != 40 {
		t.Fatalf("xp after purchase = %d, want 40", total)
	}
}

func TestPurchaseInsufficientXP(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 30)
	item := makeItem(t, svc, 60, nil, true)

	if _, err := svc.Purchase("u1", item.ID, "attempt-1"); !errors.Is(err, ErrInsufficientXP) {
		t.Fatalf("err = %v, want ErrInsufficientXP", err)
	}
	// rollback: no purchase row, no ledger entry
	var n int64
	svc.DB.Model(&models.Purchase{}).Where("account_id = ?", "u1").Count(&n)
	if n != 0 {
		t.Fatal("failed purchase left a row behind")
	}
	total, _ := ledger.CurrentXP("u1")
	if total != 30 {
		t.Fatalf("xp = %d, want untouched 30", total)
	}
}

func TestPurchaseNonRepeatableOnce(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 500)
	item := makeItem(t, svc, 50, nil, false)

	if _, err := svc.Purchase("u1", item.ID, "attempt-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Purchase("u1", item.ID, "attempt-2"); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("rebuy err = %v, want ErrAlreadyOwned", err)
	}
	total, _ := ledger.CurrentXP("u1")
	if total != 450 {
		t.Fatalf("xp = %d, want charged once (450)", total)
	}
}

// The already-owned answer must not depend on the connection translating
// driver errors: a raw unique-violation would bubble up as a 500.
func TestPurchaseNonRepeatableWithoutErrorTranslation(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.LedgerEntry{},
		&models.ShopItem{}, &models.Purchase{}); err != nil {
		t.Fatal(err)
	}
	ledger := NewLedgerService(db)
	svc := NewShopService(db, ledger)
	seedAccount(t, ledger, "u1", 500)
	item := makeItem(t, svc, 50, nil, false)

	if _, err := svc.Purchase("u1", item.ID, "attempt-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Purchase("u1", item.ID, "attempt-2"); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("rebuy err = %v, want ErrAlreadyOwned", err)
	}
	total, _ := ledger.CurrentXP("u1")
	if total != 450 {
		t.Fatalf("xp = %d, want charged once (450)", total)
	}
	// replaying the settled attempt still returns the original purchase
	p, err := svc.Purchase("u1", item.ID, "attempt-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.AttemptID != "attempt-1" {
		t.Fatalf("replay returned attempt %s, want attempt-1", p.AttemptID)
	}
}

func TestPurchaseRepeatable(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 500)
	item := makeItem(t, svc, 50, nil, true)

	for i := 0; i < 3; i++ {
		if _, err := svc.Purchase("u1", item.ID, uuid.NewString()); err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
	}
	total, _ := ledger.CurrentXP("u1")
	if total != 350 {
		t.Fatalf("xp = %d, want 350", total)
	}
}

func TestPurchaseAttemptReplay(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 500)
	item := makeItem(t, svc, 50, nil, true)

	first, err := svc.Purchase("u1", item.ID, "attempt-1")
	if err != nil {
		t.Fatal(err)
	}
	replay, err := svc.Purchase("u1", item.ID, "attempt-1")
	if err != nil {
		t.Fatalf("replay must succeed, got %v", err)
	}
	if replay.ID != first.ID {
		t.Fatal("replay returned a different purchase")
	}
	total, _ := ledger.CurrentXP("u1")
	if total != 450 {
		t.Fatalf("xp = %d, want charged once (450)", total)
	}
}

func TestPurchaseStockExhaustion(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 500)
	seedAccount(t, ledger, "u2", 500)
	item := makeItem(t, svc, 50, intptr(1), true)

	if _, err := svc.Purchase("u1", item.ID, "a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Purchase("u2", item.ID, "a2"); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}

	var fresh models.ShopItem
	svc.DB.First(&fresh, "id = ?", item.ID)
	if fresh.Stock == nil || *fresh.Stock != 0 {
		t.Fatalf("stock = %v, want 0", fresh.Stock)
	}
	// loser untouched
	total, _ := ledger.CurrentXP("u2")
	if total != 500 {
		t.Fatalf("u2 xp = %d, want 500", total)
	}
}

func TestPurchaseUnavailable(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 500)
	item := makeItem(t, svc, 50, nil, true)
	if err := svc.UpdateItem(item.ID, map[string]interface{}{"available": false}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Purchase("u1", item.ID, "a1"); !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("err = %v, want ErrItemUnavailable", err)
	}
}

func TestPurchaseUnknownItem(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 500)
	if _, err := svc.Purchase("u1", "nope", "a1"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err = %v, want ErrUnknownItem", err)
	}
}

func TestCatalogAnnotations(t *testing.T) {
	svc, ledger := newShopFixture(t)
	seedAccount(t, ledger, "u1", 100)
	cheap := makeItem(t, svc, 50, nil, false)
	makeItem(t, svc, 900, nil, false)

	if _, err := svc.Purchase("u1", cheap.ID, "a1"); err != nil {
		t.Fatal(err)
	}

	catalog, err := svc.Catalog("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog) != 2 {
		t.Fatalf("catalog size = %d, want 2", len(catalog))
	}
	for _, view := range catalog {
		switch view.ID {
		case cheap.ID:
			if !view.Owned {
				t.Error("cheap item should be owned")
			}
		default:
			if view.Owned || view.CanAfford {
				t.Errorf("expensive item flags wrong: %+v", view)
			}
		}
	}
}
