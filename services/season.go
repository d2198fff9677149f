package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"nexus-progression-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Season payout tiers, paid on close. Positions beyond the listed tiers
// receive the participation amount when they scored any XP at all.
var seasonPayouts = struct {
	First, Second, Third, TopTen, Participant int64
}{
	First:       500,
	Second:      300,
	Third:       200,
	TopTen:      100,
	Participant: 25,
}

type SeasonService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Clock  interface{ Now() time.Time }
}

func NewSeasonService(db *gorm.DB, ledger *LedgerService, clock interface{ Now() time.Time }) *SeasonService {
	return &SeasonService{DB: db, Ledger: ledger, Clock: clock}
}

func (s *SeasonService) Get(seasonID string) (*models.Season, error) {
	var season models.Season
	if err := s.DB.First(&season, "id = ?", seasonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSeason, seasonID)
		}
		return nil, err
	}
	return &season, nil
}

// Current returns the active season covering t, or nil when none is running.
func (s *SeasonService) Current(t time.Time) (*models.Season, error) {
	var season models.Season
	err := s.DB.Where("status = ? AND starts_at <= ? AND ends_at > ?", models.SeasonActive, t, t).
		Order("starts_at DESC").
		First(&season).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &season, nil
}

func (s *SeasonService) Open(name string, startsAt, endsAt time.Time) (*models.Season, error) {
	season := models.Season{
		ID:       uuid.NewString(),
		Name:     name,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Status:   models.SeasonActive,
	}
	if err := s.DB.Create(&season).Error; err != nil {
		return nil, err
	}
	log.Printf("🏆 Season opened: %s (%s → %s)", name,
		startsAt.Format("2006-01-02"), endsAt.Format("2006-01-02"))
	return &season, nil
}

// AddXP mirrors a positive XP grant into the account's season score.
// Season totals only ever grow — spending XP in the shop does not drop
// anyone down the leaderboard.
func (s *SeasonService) AddXP(accountID, seasonID string, delta int64) error {
	if delta <= 0 {
		return nil
	}
	score := models.SeasonScore{
		AccountID: accountID,
		SeasonID:  seasonID,
		XP:        delta,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "season_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"xp": gorm.Expr("xp + ?", delta)}),
	}).Create(&score).Error
}

// RankedScore is one leaderboard row.
type RankedScore struct {
	Position  int    `json:"position"`
	AccountID string `json:"account_id"`
	XP        int64  `json:"xp"`
}

// Leaderboard orders by season XP, earliest scorer first on ties so a
// late arrival can never displace whoever reached the total first.
func (s *SeasonService) Leaderboard(seasonID string, limit int) ([]RankedScore, error) {
	var scores []models.SeasonScore
	q := s.DB.Where("season_id = ?", seasonID).Order("xp DESC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&scores).Error; err != nil {
		return nil, err
	}
	ranked := make([]RankedScore, len(scores))
	for i, sc := range scores {
		ranked[i] = RankedScore{Position: i + 1, AccountID: sc.AccountID, XP: sc.XP}
	}
	return ranked, nil
}

// Rank returns one account's position, or position 0 when it has not scored.
func (s *SeasonService) Rank(accountID, seasonID string) (RankedScore, error) {
	var score models.SeasonScore
	err := s.DB.Where("account_id = ? AND season_id = ?", accountID, seasonID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RankedScore{AccountID: accountID}, nil
	}
	if err != nil {
		return RankedScore{}, err
	}

	var ahead int64
	err = s.DB.Model(&models.SeasonScore{}).
		Where("season_id = ? AND (xp > ? OR (xp = ? AND created_at < ?))",
			seasonID, score.XP, score.XP, score.CreatedAt).
		Count(&ahead).Error
	if err != nil {
		return RankedScore{}, err
	}
	return RankedScore{Position: int(ahead) + 1, AccountID: accountID, XP: score.XP}, nil
}

func payoutForPosition(pos int) (int64, string) {
	switch {
	case pos == 1:
		return seasonPayouts.First, "1st place"
	case pos == 2:
		return seasonPayouts.Second, "2nd place"
	case pos == 3:
		return seasonPayouts.Third, "3rd place"
	case pos <= 10:
		return seasonPayouts.TopTen, "top 10"
	default:
		return seasonPayouts.Participant, "participation"
	}
}

// Close finalizes a season exactly once and pays ranked rewards. The
// status flip is the gate: a second close sees zero rows updated and gets
// ErrAlreadyClosed before any payout runs. Payout grants are keyed per
// account per season, so even a crash between flip and payouts is safe to
// re-drive by hand.
func (s *SeasonService) Close(seasonID string) error {
	season, err := s.Get(seasonID)
	if err != nil {
		return err
	}

	now := s.Clock.Now()
	flip := s.DB.Model(&models.Season{}).
		Where("id = ? AND status = ?", seasonID, models.SeasonActive).
		Updates(map[string]interface{}{"status": models.SeasonCompleted, "finalized_at": &now})
	if flip.Error != nil {
		return flip.Error
	}
	if flip.RowsAffected == 0 {
		return ErrAlreadyClosed
	}

	ranked, err := s.Leaderboard(seasonID, 0)
	if err != nil {
		return err
	}
	for _, row := range ranked {
		amount, tier := payoutForPosition(row.Position)
		idemKey := fmt.Sprintf("season:%s:%s", row.AccountID, seasonID)
		_, err := s.Ledger.Grant(row.AccountID, amount, "season:"+seasonID,
			fmt.Sprintf("Season %s reward (%s)", season.Name, tier), idemKey)
		if err != nil {
			log.Printf("⚠️  Season payout failed (%s, pos %d): %v", row.AccountID, row.Position, err)
		}
	}
	log.Printf("🏆 Season closed: %s (%d participants paid)", season.Name, len(ranked))
	return nil
}

// CloseEnded closes every active season past its end date. Daily job.
func (s *SeasonService) CloseEnded(t time.Time) error {
	var seasons []models.Season
	if err := s.DB.Where("status = ? AND ends_at <= ?", models.SeasonActive, t).
		Find(&seasons).Error; err != nil {
		return err
	}
	for _, season := range seasons {
		if err := s.Close(season.ID); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			log.Printf("⚠️  Season close failed (%s): %v", season.ID, err)
		}
	}
	return nil
}

// Snapshot records today's top positions for the active season so rank
// history survives after scores keep moving. Re-running on the same day
// is a no-op per account.
func (s *SeasonService) Snapshot(seasonID string, day string, topN int) error {
	ranked, err := s.Leaderboard(seasonID, topN)
	if err != nil {
		return err
	}
	for _, row := range ranked {
		snap := models.RankSnapshot{
			SeasonID:     seasonID,
			SnapshotDate: day,
			AccountID:    row.AccountID,
			Position:     row.Position,
			XP:           row.XP,
		}
		err := s.DB.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "season_id"}, {Name: "snapshot_date"}, {Name: "account_id"},
			},
			DoNothing: true,
		}).Create(&snap).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// RankHistory returns an account's snapshotted positions, oldest first.
func (s *SeasonService) RankHistory(accountID, seasonID string) ([]models.RankSnapshot, error) {
	var snaps []models.RankSnapshot
	err := s.DB.Where("account_id = ? AND season_id = ?", accountID, seasonID).
		Order("snapshot_date ASC").
		Find(&snaps).Error
	return snaps, err
}
