package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"nexus-progression-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// XP granted for earning any badge (on top of the badge itself).
const earnBadgeXP = 25

type BadgeService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	// onAward runs after a new award commits (collection checks,
	// notifications). Never fires for already-owned badges.
	onAward func(accountID, badgeKey string)
}

func NewBadgeService(db *gorm.DB, ledger *LedgerService) *BadgeService {
	return &BadgeService{DB: db, Ledger: ledger}
}

// SetAwardHook wires the post-award callback (engine wiring).
func (s *BadgeService) SetAwardHook(fn func(accountID, badgeKey string)) {
	s.onAward = fn
}

// SeedDefinitions inserts the default badge definitions, skipping keys that
// already exist so admin edits survive restarts.
func (s *BadgeService) SeedDefinitions() error {
	for _, def := range models.DefaultBadges {
		def.ID = uuid.NewString()
		res := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&def)
		if res.Error != nil {
			return fmt.Errorf("seed badge %s: %w", def.Key, res.Error)
		}
	}
	return nil
}

func (s *BadgeService) Definition(key string) (*models.BadgeDefinition, error) {
	var def models.BadgeDefinition
	if err := s.DB.Where("key = ?", key).First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBadge, key)
		}
		return nil, err
	}
	return &def, nil
}

// Evaluate checks every active definition on counterName against the new
// counter value and awards whatever is now reached. Awarding is idempotent,
// so re-evaluating stale or replayed values is harmless.
func (s *BadgeService) Evaluate(accountID, counterName string, counterValue int64) error {
	var defs []models.BadgeDefinition
	if err := s.DB.Where("counter = ? AND is_active = ? AND manual_only = ?", counterName, true, false).
		Find(&defs).Error; err != nil {
		return err
	}

	for _, def := range defs {
		if counterValue < def.Threshold {
			continue
		}
		if _, err := s.Award(accountID, def.Key); err != nil {
			return err
		}
	}
	return nil
}

// Award grants a badge at most once per account — insert-or-ignore on the
// (account, badge) pair. On a real insert it also pays the earn-badge XP
// and flags the platform-wide first holder. Re-earning returns awarded=false
// with no side effects.
func (s *BadgeService) Award(accountID, badgeKey string) (awarded bool, err error) {
	def, err := s.Definition(badgeKey)
	if err != nil {
		return false, err
	}

	award := models.BadgeAward{
		ID:        uuid.NewString(),
		AccountID: accountID,
		BadgeKey:  def.Key,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "badge_key"}},
			DoNothing: true,
		}).Create(&award)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already owned, nothing to do
		}
		awarded = true

		// First holder platform-wide gets the "first" tag. The marker row's
		// primary key picks exactly one winner under concurrency; a count
		// could hand the tag to both sides of a race.
		marker := models.BadgeFirstHolder{BadgeKey: def.Key, AccountID: accountID}
		claim := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 1 {
			if err := tx.Model(&models.BadgeAward{}).Where("id = ?", award.ID).
				Update("first", true).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !awarded {
		return false, nil
	}

	log.Printf("🎖️ Badge awarded: %s → %s", def.Name, accountID)

	// Earn-badge XP, keyed on the pair so a concurrent recheck cannot
	// double-pay. Notification-style side effects stay outside the award
	// transaction and must not undo it.
	idemKey := fmt.Sprintf("badge:%s:%s", accountID, def.Key)
	if res, err := s.Ledger.Grant(accountID, earnBadgeXP, "earn_badge", "Badge: "+def.Name, idemKey); err != nil {
		log.Printf("⚠️  earn-badge XP grant failed for %s/%s: %v", accountID, def.Key, err)
	} else if !res.Applied {
		log.Printf("earn-badge XP already granted for %s/%s", accountID, def.Key)
	}

	if s.onAward != nil {
		s.onAward(accountID, def.Key)
	}

	return true, nil
}

// Rarity computes, at read time, the percentage of the eligible population
// holding the badge. Eligible = accounts that have ever triggered the
// badge's counter; manual badges fall back to all active accounts. Returns
// 0 when nobody is eligible yet.
func (s *BadgeService) Rarity(badgeKey string) (float64, error) {
	def, err := s.Definition(badgeKey)
	if err != nil {
		return 0, err
	}

	var holders int64
	if err := s.DB.Model(&models.BadgeAward{}).Where("badge_key = ?", def.Key).Count(&holders).Error; err != nil {
		return 0, err
	}

	var eligible int64
	if def.Counter != "" {
		err = s.DB.Model(&models.ActivityCounter{}).
			Where("counter = ? AND value >= 1", def.Counter).
			Count(&eligible).Error
	} else {
		err = s.DB.Model(&models.Account{}).Where("is_active = ?", true).Count(&eligible).Error
	}
	if err != nil {
		return 0, err
	}
	if eligible == 0 {
		return 0, nil
	}
	return float64(holders) / float64(eligible) * 100, nil
}

// RecheckOutcome is one account's result from a bulk recheck.
type RecheckOutcome struct {
	AccountID string `json:"account_id"`
	Err       string `json:"error,omitempty"`
}

// RecheckAll re-evaluates every account against its current counters.
// Safe to run while live events keep arriving — the idempotent award path
// means the worst case is a wasted no-op. Per-account failures are
// collected, not fatal.
func (s *BadgeService) RecheckAll() ([]RecheckOutcome, error) {
	var accountIDs []string
	if err := s.DB.Model(&models.Account{}).Where("is_active = ?", true).
		Pluck("id", &accountIDs).Error; err != nil {
		return nil, err
	}

	var outcomes []RecheckOutcome
	for _, id := range accountIDs {
		if err := s.recheckAccount(id); err != nil {
			outcomes = append(outcomes, RecheckOutcome{AccountID: id, Err: err.Error()})
			continue
		}
		outcomes = append(outcomes, RecheckOutcome{AccountID: id})
	}
	return outcomes, nil
}

func (s *BadgeService) recheckAccount(accountID string) error {
	var counters []models.ActivityCounter
	if err := s.DB.Where("account_id = ?", accountID).Find(&counters).Error; err != nil {
		return err
	}
	for _, c := range counters {
		if err := s.Evaluate(accountID, c.Counter, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Awards lists an account's badges, newest first.
func (s *BadgeService) Awards(accountID string) ([]models.BadgeAward, error) {
	var awards []models.BadgeAward
	err := s.DB.Where("account_id = ?", accountID).
		Order("awarded_at DESC").
		Find(&awards).Error
	return awards, err
}

// SetShowcase replaces the account's showcase atomically. Fails with
// ErrInvalidSelection when the list is too long, contains duplicates, or
// references a badge the account does not own.
func (s *BadgeService) SetShowcase(accountID string, orderedKeys []string) error {
	if len(orderedKeys) > models.MaxShowcaseSize {
		return fmt.Errorf("%w: at most %d badges", ErrInvalidSelection, models.MaxShowcaseSize)
	}

	seen := map[string]bool{}
	for _, key := range orderedKeys {
		if seen[key] {
			return fmt.Errorf("%w: duplicate badge %s", ErrInvalidSelection, key)
		}
		seen[key] = true
	}

	var owned []string
	if err := s.DB.Model(&models.BadgeAward{}).Where("account_id = ?", accountID).
		Pluck("badge_key", &owned).Error; err != nil {
		return err
	}
	ownedSet := map[string]bool{}
	for _, key := range owned {
		ownedSet[key] = true
	}
	for _, key := range orderedKeys {
		if !ownedSet[key] {
			return fmt.Errorf("%w: badge %s not owned", ErrInvalidSelection, key)
		}
	}

	// All-or-nothing replace.
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.ShowcaseSelection{}).Error; err != nil {
			return err
		}
		for i, key := range orderedKeys {
			sel := models.ShowcaseSelection{AccountID: accountID, BadgeKey: key, Position: i + 1}
			if err := tx.Create(&sel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Showcase returns the selection in display order.
func (s *BadgeService) Showcase(accountID string) ([]models.ShowcaseSelection, error) {
	var sels []models.ShowcaseSelection
	err := s.DB.Where("account_id = ?", accountID).Order("position ASC").Find(&sels).Error
	return sels, err
}

// BadgeProgress is the next unearned badge in a category with how close the
// account is to it.
type BadgeProgress struct {
	Badge     models.BadgeDefinition `json:"badge"`
	Current   int64                  `json:"current"`
	Target    int64                  `json:"target"`
	Percent   int                    `json:"percent"`
	Remaining int64                  `json:"remaining"`
}

// Progress reports the closest unearned badge per category, sorted by how
// near the account is to earning it (top 6).
func (s *BadgeService) Progress(accountID string) ([]BadgeProgress, error) {
	awards, err := s.Awards(accountID)
	if err != nil {
		return nil, err
	}
	earned := map[string]bool{}
	for _, a := range awards {
		earned[a.BadgeKey] = true
	}

	var defs []models.BadgeDefinition
	if err := s.DB.Where("is_active = ? AND manual_only = ?", true, false).
		Order("category ASC, threshold ASC").
		Find(&defs).Error; err != nil {
		return nil, err
	}

	var counters []models.ActivityCounter
	if err := s.DB.Where("account_id = ?", accountID).Find(&counters).Error; err != nil {
		return nil, err
	}
	values := map[string]int64{}
	for _, c := range counters {
		values[c.Counter] = c.Value
	}

	var progress []BadgeProgress
	doneCategory := map[string]bool{}
	for _, def := range defs {
		if doneCategory[def.Category] || earned[def.Key] || def.Threshold <= 0 {
			continue
		}
		current := values[def.Counter]
		if current >= def.Threshold {
			continue // earned but not yet awarded; recheck will catch it
		}
		percent := int(float64(current) / float64(def.Threshold) * 100)
		if percent > 99 {
			percent = 99
		}
		progress = append(progress, BadgeProgress{
			Badge:     def,
			Current:   current,
			Target:    def.Threshold,
			Percent:   percent,
			Remaining: def.Threshold - current,
		})
		doneCategory[def.Category] = true
	}

	sort.Slice(progress, func(i, j int) bool { return progress[i].Percent > progress[j].Percent })
	if len(progress) > 6 {
		progress = progress[:6]
	}
	return progress, nil
}
