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

type ShopService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewShopService(db *gorm.DB, ledger *LedgerService) *ShopService {
	return &ShopService{DB: db, Ledger: ledger}
}

func (s *ShopService) Item(itemID string) (*models.ShopItem, error) {
	var item models.ShopItem
	if err := s.DB.First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
		}
		return nil, err
	}
	return &item, nil
}

// ShopItemView is an item annotated with the caller's purchase state.
type ShopItemView struct {
	models.ShopItem
	Owned     bool `json:"owned"`
	CanAfford bool `json:"can_afford"`
}

func (s *ShopService) Catalog(accountID string) ([]ShopItemView, error) {
	var items []models.ShopItem
	if err := s.DB.Where("available = ?", true).Order("cost_xp ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	var account models.Account
	if err := s.DB.First(&account, "id = ?", accountID).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var purchases []models.Purchase
	if err := s.DB.Where("account_id = ?", accountID).Find(&purchases).Error; err != nil {
		return nil, err
	}
	ownedItems := map[string]bool{}
	for _, p := range purchases {
		ownedItems[p.ItemID] = true
	}

	out := make([]ShopItemView, 0, len(items))
	for _, item := range items {
		out = append(out, ShopItemView{
			ShopItem:  item,
			Owned:     ownedItems[item.ID],
			CanAfford: account.TotalXP >= item.CostXP,
		})
	}
	return out, nil
}

// Purchase spends XP on an item. Everything runs in one transaction:
// availability check, stock decrement, ownership insert, XP debit. Any
// failed guard rolls the whole thing back, so stock and XP can never be
// consumed by a purchase that did not complete. Retrying with the same
// attemptID returns the original purchase instead of charging twice.
func (s *ShopService) Purchase(accountID, itemID, attemptID string) (*models.Purchase, error) {
	item, err := s.Item(itemID)
	if err != nil {
		return nil, err
	}

	purchase := models.Purchase{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ItemID:    itemID,
		CostXP:    item.CostXP,
		AttemptID: attemptID,
	}
	if !item.Repeatable {
		key := accountID + ":" + itemID
		purchase.OwnershipKey = &key
	}

	var grant *GrantResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if !item.Available {
			return ErrItemUnavailable
		}

		// Ownership is checked before the insert so a re-purchase with a
		// fresh attempt id fails cleanly whatever the driver reports; the
		// ownership_key unique index still backstops a concurrent race.
		if !item.Repeatable {
			var owned int64
			if err := tx.Model(&models.Purchase{}).
				Where("account_id = ? AND item_id = ?", accountID, itemID).
				Count(&owned).Error; err != nil {
				return err
			}
			if owned > 0 {
				var prior models.Purchase
				if err := tx.Where("account_id = ? AND item_id = ? AND attempt_id = ?",
					accountID, itemID, attemptID).First(&prior).Error; err == nil {
					purchase = prior
					return errReplayed
				}
				return ErrAlreadyOwned
			}
		}

		// Retry with the same attempt id short-circuits before any guard
		// can fire a second time.
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}},
			DoNothing: true,
		}).Create(&purchase)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrAlreadyOwned
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			prior := tx.Where("attempt_id = ?", attemptID).First(&purchase)
			if prior.Error != nil {
				return prior.Error
			}
			return errReplayed
		}

		if item.Stock != nil {
			dec := tx.Model(&models.ShopItem{}).
				Where("id = ? AND stock > 0", itemID).
				Update("stock", gorm.Expr("stock - 1"))
			if dec.Error != nil {
				return dec.Error
			}
			if dec.RowsAffected == 0 {
				return ErrOutOfStock
			}
		}

		idemKey := "purchase:" + attemptID
		grant, err = s.Ledger.GrantTx(tx, accountID, -item.CostXP, "shop:"+item.ID,
			"Purchased: "+item.Name, idemKey)
		return err
	})
	if errors.Is(err, errReplayed) {
		return &purchase, nil
	}
	if err != nil {
		return nil, err
	}
	s.Ledger.AfterGrant(grant)
	log.Printf("🛒 %s bought %s for %d XP", accountID, item.Name, item.CostXP)
	return &purchase, nil
}

// errReplayed signals inside the purchase transaction that the attempt id
// was already settled; the caller unwraps it into a success.
var errReplayed = errors.New("purchase attempt already settled")

func (s *ShopService) Purchases(accountID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.DB.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}

func (s *ShopService) CreateItem(item *models.ShopItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return s.DB.Create(item).Error
}

func (s *ShopService) UpdateItem(itemID string, updates map[string]interface{}) error {
	res := s.DB.Model(&models.ShopItem{}).Where("id = ?", itemID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return nil
}
