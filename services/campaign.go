package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"nexus-progression-engine/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CampaignService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Badges *BadgeService
	Clock  interface{ Now() time.Time }
}

func NewCampaignService(db *gorm.DB, ledger *LedgerService, badges *BadgeService, clock interface{ Now() time.Time }) *CampaignService {
	return &CampaignService{DB: db, Ledger: ledger, Badges: badges, Clock: clock}
}

func (s *CampaignService) Get(campaignID string) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.DB.First(&c, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, campaignID)
		}
		return nil, err
	}
	return &c, nil
}

func (s *CampaignService) Create(c *models.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Key == "" {
		c.Key = slug.Make(c.Name)
	}
	if err := validateAudience(c); err != nil {
		return err
	}
	return s.DB.Create(c).Error
}

func validateAudience(c *models.Campaign) error {
	switch c.AudienceKind {
	case models.AudienceAllActive, models.AudienceJoined30d, models.AudienceActive7d, models.AudienceInactive30d:
		return nil
	case models.AudienceLevelRange:
		if c.AudienceMinLevel <= 0 && c.AudienceMaxLevel <= 0 {
			return fmt.Errorf("level_range audience needs min or max level")
		}
		return nil
	case models.AudienceHoldsBadge:
		if c.AudienceBadgeKey == "" {
			return fmt.Errorf("holds_badge audience needs a badge key")
		}
		return nil
	default:
		return fmt.Errorf("unknown audience kind: %s", c.AudienceKind)
	}
}

// EvaluateAudience resolves a campaign's audience to account ids at time t.
func (s *CampaignService) EvaluateAudience(c *models.Campaign, t time.Time) ([]string, error) {
	q := s.DB.Model(&models.Account{}).Where("is_active = ?", true)

	switch c.AudienceKind {
	case models.AudienceAllActive:
		// base filter only
	case models.AudienceJoined30d:
		q = q.Where("joined_at >= ?", t.AddDate(0, 0, -30))
	case models.AudienceActive7d:
		q = q.Where("last_login_at >= ?", t.AddDate(0, 0, -7))
	case models.AudienceInactive30d:
		q = q.Where("last_login_at < ? OR last_login_at IS NULL", t.AddDate(0, 0, -30))
	case models.AudienceLevelRange:
		if c.AudienceMinLevel > 0 {
			q = q.Where("level >= ?", c.AudienceMinLevel)
		}
		if c.AudienceMaxLevel > 0 {
			q = q.Where("level <= ?", c.AudienceMaxLevel)
		}
	case models.AudienceHoldsBadge:
		q = q.Where("id IN (?)", s.DB.Model(&models.BadgeAward{}).
			Select("account_id").
			Where("badge_key = ?", c.AudienceBadgeKey))
	default:
		return nil, fmt.Errorf("unknown audience kind: %s", c.AudienceKind)
	}

	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// RunOutcome reports what happened for one account in one tick.
type RunOutcome struct {
	AccountID string `json:"account_id"`
	Granted   bool   `json:"granted"`
	Error     string `json:"error,omitempty"`
}

// Run executes one campaign tick. A CampaignRun row per (campaign, tick,
// account) makes the tick replay-safe: a crashed run can be re-fired with
// the same tick id and only untouched accounts get grants. Failures are
// collected per account, never aborting the rest of the audience.
func (s *CampaignService) Run(campaignID, tick string) ([]RunOutcome, error) {
	c, err := s.Get(campaignID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, nil
	}

	now := s.Clock.Now()
	audience, err := s.EvaluateAudience(c, now)
	if err != nil {
		return nil, err
	}

	outcomes := make([]RunOutcome, 0, len(audience))
	for _, accountID := range audience {
		outcome := RunOutcome{AccountID: accountID}
		granted, err := s.runForAccount(c, tick, accountID)
		if err != nil {
			outcome.Error = err.Error()
			log.Printf("⚠️  Campaign %s failed for %s: %v", c.Key, accountID, err)
		}
		outcome.Granted = granted
		outcomes = append(outcomes, outcome)
	}
	log.Printf("📣 Campaign %s tick %s: %d accounts evaluated", c.Key, tick, len(audience))
	return outcomes, nil
}

func (s *CampaignService) runForAccount(c *models.Campaign, tick, accountID string) (bool, error) {
	var grant *GrantResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		run := models.CampaignRun{
			CampaignID: c.ID,
			Tick:       tick,
			AccountID:  accountID,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "campaign_id"}, {Name: "tick"}, {Name: "account_id"},
			},
			DoNothing: true,
		}).Create(&run)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errReplayed // this account already handled in this tick
		}

		if c.GrantXP > 0 {
			idemKey := fmt.Sprintf("campaign:%s:%s:%s", c.ID, tick, accountID)
			var err error
			grant, err = s.Ledger.GrantTx(tx, accountID, c.GrantXP, "campaign:"+c.Key,
				"Campaign: "+c.Name, idemKey)
			return err
		}
		return nil
	})
	if errors.Is(err, errReplayed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.Ledger.AfterGrant(grant)

	if c.GrantBadgeKey != "" {
		if _, err := s.Badges.Award(accountID, c.GrantBadgeKey); err != nil {
			return true, err
		}
	}
	return true, nil
}

// RunDue fires every active recurring campaign for the given tick.
// One-time campaigns are fired explicitly by an operator, triggered ones
// by their triggering event.
func (s *CampaignService) RunDue(tick string) {
	var campaigns []models.Campaign
	err := s.DB.Where("is_active = ? AND type = ?", true, models.CampaignRecurring).
		Find(&campaigns).Error
	if err != nil {
		log.Printf("⚠️  Campaign sweep failed: %v", err)
		return
	}
	for _, c := range campaigns {
		if _, err := s.Run(c.ID, tick); err != nil {
			log.Printf("⚠️  Campaign run failed (%s): %v", c.Key, err)
		}
	}
}

func (s *CampaignService) List() ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.DB.Order("created_at DESC").Find(&campaigns).Error
	return campaigns, err
}

func (s *CampaignService) SetActive(campaignID string, active bool) error {
	res := s.DB.Model(&models.Campaign{}).Where("id = ?", campaignID).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCampaign, campaignID)
	}
	return nil
}
