package services

import (
	"errors"
	"testing"

	"nexus-progression-engine/models"
)

func TestGrantIdempotent(t *testing.T) {
	ledger := NewLedgerService(newTestDB(t))
	seedAccount(t, ledger, "u1", 0)

	first, err := ledger.Grant("u1", 50, "test", "fifty", "key-1")
	if err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if !first.Applied {
		t.Fatal("first grant should apply")
	}

	second, err := ledger.Grant("u1", 50, "test", "fifty again", "key-1")
	if err != nil {
		t.Fatalf("replayed grant: %v", err)
	}
	if second.Applied {
		t.Fatal("replayed grant must not apply")
	}

	total, err := ledger.CurrentXP("u1")
	if err != nil {
		t.Fatal(err)
	}
	if total != 50 {
		t.Fatalf("ledger total = %d, want 50", total)
	}

	var acct models.Account
	if err := ledger.DB.First(&acct, "id = ?", "u1").Error; err != nil {
		t.Fatal(err)
	}
	if acct.TotalXP != 50 {
		t.Fatalf("cached total = %d, want 50", acct.TotalXP)
	}
}

func TestGrantDebitGuard(t *testing.T) {
	ledger := NewLedgerService(newTestDB(t))
	seedAccount(t, ledger, "u1", 30)

	if _, err := ledger.Grant("u1", -50, "test", "too much", "spend-1"); !errors.Is(err, ErrInsufficientXP) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientXP", err)
	}

	// the failed debit must leave no ledger entry behind
	total, _ := ledger.CurrentXP("u1")
	if total != 30 {
		t.Fatalf("total after failed debit = %d, want 30", total)
	}

	r, err := ledger.Grant("u1", -30, "test", "exact", "spend-2")
	if err != nil {
		t.Fatalf("exact debit: %v", err)
	}
	if !r.Applied {
		t.Fatal("exact debit should apply")
	}
	total, _ = ledger.CurrentXP("u1")
	if total != 0 {
		t.Fatalf("total = %d, want 0", total)
	}
}

func TestGrantLevelUpAndMilestone(t *testing.T) {
	ledger := NewLedgerService(newTestDB(t))
	seedAccount(t, ledger, "u1", 0)

	var hookLevel int
	ledger.SetLevelUpHook(func(accountID string, newLevel int) { hookLevel = newLevel })

	// 1000 XP crosses into level 5, which carries a 50 XP milestone bonus.
	r, err := ledger.Grant("u1", 1000, "test", "big", "big-1")
	if err != nil {
		t.Fatal(err)
	}
	if !r.LeveledUp() || r.NewLevel != 5 {
		t.Fatalf("got old=%d new=%d, want level up to 5", r.OldLevel, r.NewLevel)
	}
	if hookLevel < 5 {
		t.Fatalf("level-up hook saw level %d, want >= 5", hookLevel)
	}

	total, _ := ledger.CurrentXP("u1")
	if total != 1050 {
		t.Fatalf("total with milestone bonus = %d, want 1050", total)
	}

	// Replaying the same grant must not re-pay the milestone.
	if _, err := ledger.Grant("u1", 1000, "test", "big", "big-1"); err != nil {
		t.Fatal(err)
	}
	total, _ = ledger.CurrentXP("u1")
	if total != 1050 {
		t.Fatalf("total after replay = %d, want 1050", total)
	}
}

func TestGrantUnknownAccount(t *testing.T) {
	ledger := NewLedgerService(newTestDB(t))
	if _, err := ledger.Grant("ghost", 10, "test", "", "g-1"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("err = %v, want ErrUnknownAccount", err)
	}
}

func TestHistoryOrder(t *testing.T) {
	ledger := NewLedgerService(newTestDB(t))
	seedAccount(t, ledger, "u1", 0)
	for i, key := range []string{"a", "b", "c"} {
		if _, err := ledger.Grant("u1", int64(i+1), "test", key, key); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := ledger.History("u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
}
