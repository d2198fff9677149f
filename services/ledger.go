package services

import (
	"fmt"
	"log"
	"time"

	"nexus-progression-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantResult reports what a ledger grant actually did. Applied is false
// when the idempotency key had been used before — the original entry is
// returned and nothing changed.
type GrantResult struct {
	Entry    *models.LedgerEntry
	Applied  bool
	OldLevel int
	NewLevel int
}

func (r *GrantResult) LeveledUp() bool { return r.Applied && r.NewLevel > r.OldLevel }

// LedgerService owns the append-only XP ledger and the cached account
// totals. Every XP mutation in the engine funnels through Grant/GrantTx.
type LedgerService struct {
	DB *gorm.DB

	// onLevelUp runs after commit when a grant crossed a level boundary
	// (badge checks, notifications). Failure must not affect the grant.
	onLevelUp func(accountID string, newLevel int)

	// onGrant runs after commit for every applied grant (season score
	// mirroring). Replays never fire it.
	onGrant func(r *GrantResult)
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// SetLevelUpHook wires the post-commit level-up callback (engine wiring).
func (s *LedgerService) SetLevelUpHook(fn func(accountID string, newLevel int)) {
	s.onLevelUp = fn
}

// SetGrantHook wires the post-commit applied-grant callback (engine wiring).
func (s *LedgerService) SetGrantHook(fn func(r *GrantResult)) {
	s.onGrant = fn
}

// Grant applies a signed XP delta exactly once per idempotency key.
// Re-applying the same key is a no-op returning the original entry.
func (s *LedgerService) Grant(accountID string, delta int64, source, description, idemKey string) (*GrantResult, error) {
	var result *GrantResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := s.GrantTx(tx, accountID, delta, source, description, idemKey)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.AfterGrant(result)
	return result, nil
}

// GrantTx is the transactional core of Grant for callers that need the
// grant inside a larger atomic unit (shop purchase, daily claim). The
// caller must invoke AfterGrant once its transaction commits.
func (s *LedgerService) GrantTx(tx *gorm.DB, accountID string, delta int64, source, description, idemKey string) (*GrantResult, error) {
	entry := models.LedgerEntry{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		DeltaXP:        delta,
		Source:         source,
		Description:    description,
		IdempotencyKey: idemKey,
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// Same logical grant seen before — return the original, unchanged.
		var existing models.LedgerEntry
		if err := tx.Where("idempotency_key = ?", idemKey).First(&existing).Error; err != nil {
			return nil, err
		}
		return &GrantResult{Entry: &existing, Applied: false}, nil
	}

	// Apply to the cached balance. Debits are compare-and-debit so two
	// concurrent spends cannot both observe a sufficient balance.
	var apply *gorm.DB
	if delta < 0 {
		apply = tx.Model(&models.Account{}).
			Where("id = ? AND total_xp >= ?", accountID, -delta).
			Update("total_xp", gorm.Expr("total_xp + ?", delta))
	} else {
		apply = tx.Model(&models.Account{}).
			Where("id = ?", accountID).
			Update("total_xp", gorm.Expr("total_xp + ?", delta))
	}
	if apply.Error != nil {
		return nil, apply.Error
	}
	if apply.RowsAffected == 0 {
		if delta < 0 {
			return nil, ErrInsufficientXP
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}

	// Refresh the cached level. Best-effort: the level is derivable from
	// XP so later reads self-heal even if this lags.
	var acct models.Account
	if err := tx.Select("id", "total_xp", "level").First(&acct, "id = ?", accountID).Error; err != nil {
		return nil, err
	}
	oldLevel := acct.Level
	newLevel := LevelForXP(acct.TotalXP)
	if newLevel != oldLevel {
		updates := map[string]interface{}{"level": newLevel}
		if newLevel > oldLevel {
			now := time.Now()
			updates["last_level_up_at"] = &now
		}
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return &GrantResult{Entry: &entry, Applied: true, OldLevel: oldLevel, NewLevel: newLevel}, nil
}

// AfterGrant runs the post-commit side effects: the grant hook, milestone
// bonus XP and the level-up hook. All are idempotent or fire-and-forget, so
// running them after a retried grant is harmless.
func (s *LedgerService) AfterGrant(r *GrantResult) {
	if r == nil || !r.Applied {
		return
	}

	if s.onGrant != nil {
		s.onGrant(r)
	}

	if !r.LeveledUp() {
		return
	}

	log.Printf("🎮 Level up: %s → L%d", r.Entry.AccountID, r.NewLevel)

	for lvl := r.OldLevel + 1; lvl <= r.NewLevel; lvl++ {
		bonus, ok := MilestoneBonuses[lvl]
		if !ok {
			continue
		}
		key := fmt.Sprintf("level_milestone:%s:%d", r.Entry.AccountID, lvl)
		if _, err := s.Grant(r.Entry.AccountID, bonus, "level_milestone",
			fmt.Sprintf("Level %d milestone bonus", lvl), key); err != nil {
			log.Printf("⚠️  Milestone bonus failed for %s L%d: %v", r.Entry.AccountID, lvl, err)
		}
	}

	if s.onLevelUp != nil {
		s.onLevelUp(r.Entry.AccountID, r.NewLevel)
	}
}

// CurrentXP sums the ledger for an account — the authoritative balance.
func (s *LedgerService) CurrentXP(accountID string) (int64, error) {
	var total int64
	err := s.DB.Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(delta_xp), 0)").
		Scan(&total).Error
	return total, err
}

// History returns recent ledger entries, newest first.
func (s *LedgerService) History(accountID string, limit int) ([]models.LedgerEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var entries []models.LedgerEntry
	err := s.DB.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// EnsureAccount creates the account row if missing (idempotent).
func (s *LedgerService) EnsureAccount(accountID string) (*models.Account, error) {
	acct := models.Account{ID: accountID, Level: 1, IsActive: true, JoinedAt: time.Now()}
	res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&acct)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if err := s.DB.First(&acct, "id = ?", accountID).Error; err != nil {
			return nil, err
		}
	}
	return &acct, nil
}
