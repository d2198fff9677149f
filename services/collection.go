package services

import (
	"errors"
	"fmt"
	"log"

	"nexus-progression-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CollectionService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewCollectionService(db *gorm.DB, ledger *LedgerService) *CollectionService {
	return &CollectionService{DB: db, Ledger: ledger}
}

func (s *CollectionService) Get(collectionID string) (*models.Collection, error) {
	var col models.Collection
	if err := s.DB.First(&col, "id = ?", collectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("collection not found: %s", collectionID)
		}
		return nil, err
	}
	return &col, nil
}

func (s *CollectionService) memberKeys(collectionID string) ([]string, error) {
	var keys []string
	err := s.DB.Model(&models.CollectionBadge{}).
		Where("collection_id = ?", collectionID).
		Order("badge_key ASC").
		Pluck("badge_key", &keys).Error
	return keys, err
}

// CollectionProgress is derived from badge awards on every read; there is
// no stored per-badge collection state to drift.
type CollectionProgress struct {
	Collection models.Collection `json:"collection"`
	Badges     []string          `json:"badges"`
	Owned      []string          `json:"owned"`
	Complete   bool              `json:"complete"`
	BonusPaid  bool              `json:"bonus_paid"`
}

func (s *CollectionService) Progress(accountID string) ([]CollectionProgress, error) {
	var collections []models.Collection
	if err := s.DB.Where("is_active = ?", true).Order("name ASC").Find(&collections).Error; err != nil {
		return nil, err
	}

	var awards []models.BadgeAward
	if err := s.DB.Where("account_id = ?", accountID).Find(&awards).Error; err != nil {
		return nil, err
	}
	owned := map[string]bool{}
	for _, a := range awards {
		owned[a.BadgeKey] = true
	}

	out := make([]CollectionProgress, 0, len(collections))
	for _, col := range collections {
		keys, err := s.memberKeys(col.ID)
		if err != nil {
			return nil, err
		}
		progress := CollectionProgress{Collection: col, Badges: keys, Owned: []string{}}
		for _, key := range keys {
			if owned[key] {
				progress.Owned = append(progress.Owned, key)
			}
		}
		progress.Complete = len(keys) > 0 && len(progress.Owned) == len(keys)
		if progress.Complete {
			var paid int64
			if err := s.DB.Model(&models.CollectionBonusAward{}).
				Where("account_id = ? AND collection_id = ?", accountID, col.ID).
				Count(&paid).Error; err != nil {
				return nil, err
			}
			progress.BonusPaid = paid > 0
		}
		out = append(out, progress)
	}
	return out, nil
}

// CheckAndAwardBonus pays the collection bonus if the account now owns every
// badge in the collection. The bonus row's unique constraint makes the
// payout once-per-account no matter how many awards race in.
func (s *CollectionService) CheckAndAwardBonus(accountID, collectionID string) (bool, error) {
	col, err := s.Get(collectionID)
	if err != nil {
		return false, err
	}
	if !col.IsActive {
		return false, nil
	}

	keys, err := s.memberKeys(collectionID)
	if err != nil || len(keys) == 0 {
		return false, err
	}
	var ownedCount int64
	if err := s.DB.Model(&models.BadgeAward{}).
		Where("account_id = ? AND badge_key IN ?", accountID, keys).
		Count(&ownedCount).Error; err != nil {
		return false, err
	}
	if ownedCount < int64(len(keys)) {
		return false, nil
	}

	var grant *GrantResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		bonus := models.CollectionBonusAward{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			CollectionID: collectionID,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "collection_id"}},
			DoNothing: true,
		}).Create(&bonus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // bonus already paid
		}

		idemKey := fmt.Sprintf("collection:%s:%s", accountID, collectionID)
		grant, err = s.Ledger.GrantTx(tx, accountID, col.BonusXP, "collection:"+col.ID,
			"Completed collection: "+col.Name, idemKey)
		return err
	})
	if err != nil || grant == nil {
		return false, err
	}
	s.Ledger.AfterGrant(grant)
	log.Printf("🎖️  Collection %s completed by %s (+%d XP)", col.Name, accountID, col.BonusXP)
	return true, nil
}

// OnBadgeAwarded re-checks every active collection containing the badge.
// Wired as the badge service's award hook.
func (s *CollectionService) OnBadgeAwarded(accountID, badgeKey string) {
	var collectionIDs []string
	err := s.DB.Model(&models.CollectionBadge{}).
		Where("badge_key = ?", badgeKey).
		Pluck("collection_id", &collectionIDs).Error
	if err != nil {
		log.Printf("⚠️  Collection lookup failed for badge %s: %v", badgeKey, err)
		return
	}
	for _, id := range collectionIDs {
		if _, err := s.CheckAndAwardBonus(accountID, id); err != nil {
			log.Printf("⚠️  Collection bonus check failed (%s → %s): %v", accountID, id, err)
		}
	}
}
