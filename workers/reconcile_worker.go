package workers

import (
	"context"
	"log"
	"time"

	"nexus-progression-engine/models"
	"nexus-progression-engine/services"

	"gorm.io/gorm"
)

// ReconcileWorker recomputes the cached account totals from the ledger.
// The ledger is authoritative; the cached total_xp/level on accounts exist
// for cheap reads and debit guards, and this worker heals any drift
// between the two.
type ReconcileWorker struct {
	db       *gorm.DB
	interval time.Duration
}

func NewReconcileWorker(db *gorm.DB) *ReconcileWorker {
	return &ReconcileWorker{
		db:       db,
		interval: 1 * time.Hour,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Ledger Reconcile Worker (ledger → account cache)…")
	go w.run(ctx)
}

func (w *ReconcileWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.ReconcileAll(); err != nil {
				log.Printf("❌ Ledger reconcile failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Ledger Reconcile Worker stopped")
			return
		}
	}
}

type ledgerTotal struct {
	AccountID string
	Total     int64
}

// ReconcileAll sweeps every account with ledger entries and rewrites the
// cached XP and level wherever they disagree with the ledger sum. The
// update is conditional on the stale value so a grant landing mid-sweep
// cannot be overwritten with an older total.
func (w *ReconcileWorker) ReconcileAll() error {
	var totals []ledgerTotal
	err := w.db.Model(&models.LedgerEntry{}).
		Select("account_id, COALESCE(SUM(delta_xp), 0) AS total").
		Group("account_id").
		Scan(&totals).Error
	if err != nil {
		return err
	}

	var fixed int
	for _, t := range totals {
		var acct models.Account
		if err := w.db.Select("id", "total_xp", "level").
			First(&acct, "id = ?", t.AccountID).Error; err != nil {
			log.Printf("⚠️ Reconcile: account %s missing: %v", t.AccountID, err)
			continue
		}

		level := services.LevelForXP(t.Total)
		if acct.TotalXP == t.Total && acct.Level == level {
			continue
		}

		res := w.db.Model(&models.Account{}).
			Where("id = ? AND total_xp = ?", t.AccountID, acct.TotalXP).
			Updates(map[string]interface{}{"total_xp": t.Total, "level": level})
		if res.Error != nil {
			log.Printf("⚠️ Reconcile: update failed for %s: %v", t.AccountID, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			fixed++
			log.Printf("🔧 Reconciled %s: cached %d → ledger %d (L%d)",
				t.AccountID, acct.TotalXP, t.Total, level)
		}
	}

	if fixed > 0 {
		log.Printf("✅ Reconcile sweep complete: %d account(s) corrected", fixed)
	}
	return nil
}
