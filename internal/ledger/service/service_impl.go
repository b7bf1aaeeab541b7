package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/actionboard/internal/clock"
	"github.com/smallbiznis/actionboard/internal/events"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	"github.com/smallbiznis/actionboard/internal/level"
	obsmetrics "github.com/smallbiznis/actionboard/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock         `optional:"true"`
	Outbox     *events.Outbox      `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		clock:      c,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Grant(ctx context.Context, req ledgerdomain.GrantRequest) (ledgerdomain.GrantResult, error) {
	req, err := normalizeGrant(req)
	if err != nil {
		return ledgerdomain.GrantResult{}, err
	}

	var result ledgerdomain.GrantResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.applyGrant(ctx, tx, req)
		return txErr
	})
	if err != nil {
		return ledgerdomain.GrantResult{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(req.SourceType), req.Amount)
	}
	return result, nil
}

func (s *Service) GrantBonus(ctx context.Context, req ledgerdomain.BonusRequest) (ledgerdomain.GrantResult, error) {
	if req.Count <= 0 || req.PointsPerUnit <= 0 {
		return ledgerdomain.GrantResult{}, ledgerdomain.ErrInvalidAmount
	}
	return s.Grant(ctx, ledgerdomain.GrantRequest{
		UserID:      req.UserID,
		SeasonID:    req.SeasonID,
		Amount:      req.Points(),
		SourceType:  ledgerdomain.SourceTypeBonus,
		SourceID:    req.AchievementID,
		Description: req.Description(),
	})
}

// GrantBatch folds requests per (user, season) for the snapshot update but
// still writes one ledger row per request.
func (s *Service) GrantBatch(ctx context.Context, reqs []ledgerdomain.GrantRequest) ([]ledgerdomain.UserLevel, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	normalized := make([]ledgerdomain.GrantRequest, 0, len(reqs))
	for _, req := range reqs {
		n, err := normalizeGrant(req)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
	}

	type key struct{ userID, seasonID string }
	totals := map[key]int64{}
	order := make([]key, 0)
	for _, req := range normalized {
		k := key{req.UserID, req.SeasonID}
		if _, seen := totals[k]; !seen {
			order = append(order, k)
		}
		totals[k] += req.Amount
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].userID == order[j].userID {
			return order[i].seasonID < order[j].seasonID
		}
		return order[i].userID < order[j].userID
	})

	levels := make([]ledgerdomain.UserLevel, 0, len(order))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, req := range normalized {
			if _, err := s.insertTransaction(ctx, tx, req); err != nil {
				return err
			}
		}
		for _, k := range order {
			ul, _, err := s.applyDelta(ctx, tx, k.userID, k.seasonID, totals[k])
			if err != nil {
				return err
			}
			levels = append(levels, ul)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		for _, req := range normalized {
			s.obsMetrics.RecordLedgerEntry(ctx, string(req.SourceType), req.Amount)
		}
	}
	return levels, nil
}

func (s *Service) GetUserLevel(ctx context.Context, userID, seasonID string) (*ledgerdomain.UserLevel, error) {
	userID = strings.TrimSpace(userID)
	seasonID = strings.TrimSpace(seasonID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if seasonID == "" {
		return nil, ledgerdomain.ErrInvalidSeason
	}
	return findUserLevel(ctx, s.db, userID, seasonID)
}

func (s *Service) BonusForAchievement(ctx context.Context, userID, achievementID string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(xp_amount), 0)
		 FROM xp_transactions
		 WHERE user_id = ? AND source_id = ? AND source_type = ?`,
		userID,
		achievementID,
		string(ledgerdomain.SourceTypeBonus),
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) History(ctx context.Context, userID, seasonID string, limit int) ([]ledgerdomain.XpTransaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	stmt := s.db.WithContext(ctx).
		Model(&ledgerdomain.XpTransaction{}).
		Where("user_id = ?", userID)
	if seasonID = strings.TrimSpace(seasonID); seasonID != "" {
		stmt = stmt.Where("season_id = ?", seasonID)
	}

	var rows []ledgerdomain.XpTransaction
	if err := stmt.Order("created_at desc, id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) Rank(ctx context.Context, userID, seasonID string) (int64, error) {
	current, err := s.GetUserLevel(ctx, userID, seasonID)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, nil
	}

	var ahead int64
	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM user_levels WHERE season_id = ? AND xp > ?`,
		seasonID,
		current.XP,
	).Scan(&ahead).Error
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

func (s *Service) Verify(ctx context.Context, userID, seasonID string) (ledgerdomain.Consistency, error) {
	out := ledgerdomain.Consistency{UserID: userID, SeasonID: seasonID, CachedLevel: level.MinLevel}

	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(xp_amount), 0) FROM xp_transactions WHERE user_id = ? AND season_id = ?`,
		userID,
		seasonID,
	).Scan(&out.LedgerSum).Error
	if err != nil {
		return out, err
	}

	current, err := findUserLevel(ctx, s.db, userID, seasonID)
	if err != nil {
		return out, err
	}
	if current != nil {
		out.CachedXP = current.XP
		out.CachedLevel = current.Level
	}
	out.Consistent = out.CachedXP == out.LedgerSum && out.CachedLevel == level.CalculateLevel(out.CachedXP)
	if !out.Consistent {
		s.log.Warn("xp snapshot drifted from ledger",
			zap.String("user_id", userID),
			zap.String("season_id", seasonID),
			zap.Int64("ledger_sum", out.LedgerSum),
			zap.Int64("cached_xp", out.CachedXP),
		)
	}
	return out, nil
}

func (s *Service) applyGrant(ctx context.Context, tx *gorm.DB, req ledgerdomain.GrantRequest) (ledgerdomain.GrantResult, error) {
	txID, err := s.insertTransaction(ctx, tx, req)
	if err != nil {
		return ledgerdomain.GrantResult{}, err
	}

	updated, previous, err := s.applyDelta(ctx, tx, req.UserID, req.SeasonID, req.Amount)
	if err != nil {
		return ledgerdomain.GrantResult{}, err
	}

	return ledgerdomain.GrantResult{
		TransactionID: txID,
		XPGranted:     req.Amount,
		PreviousLevel: previous,
		UserLevel:     updated,
	}, nil
}

func (s *Service) insertTransaction(ctx context.Context, tx *gorm.DB, req ledgerdomain.GrantRequest) (string, error) {
	id := uuid.NewString()
	var sourceID *string
	if req.SourceID != "" {
		sourceID = &req.SourceID
	}
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO xp_transactions (id, user_id, season_id, xp_amount, source_type, source_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		req.UserID,
		req.SeasonID,
		req.Amount,
		string(req.SourceType),
		sourceID,
		req.Description,
		s.clock.Now(),
	).Error
	if err != nil {
		return "", err
	}
	return id, nil
}

// applyDelta moves the snapshot by delta with an atomic increment so
// concurrent grants for the same user cannot lose updates.
func (s *Service) applyDelta(ctx context.Context, tx *gorm.DB, userID, seasonID string, delta int64) (ledgerdomain.UserLevel, int, error) {
	now := s.clock.Now()

	init := ledgerdomain.UserLevel{
		UserID:    userID,
		SeasonID:  seasonID,
		XP:        0,
		Level:     level.MinLevel,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&init).Error; err != nil {
		s.log.Error("failed to initialize user level", zap.String("user_id", userID), zap.Error(err))
		return ledgerdomain.UserLevel{}, 0, fmt.Errorf("%w: %v", ledgerdomain.ErrLevelInitFailed, err)
	}

	before, err := findUserLevel(ctx, tx, userID, seasonID)
	if err != nil || before == nil {
		return ledgerdomain.UserLevel{}, 0, levelUpdateErr(err)
	}

	if err := tx.WithContext(ctx).Exec(
		`UPDATE user_levels SET xp = xp + ?, updated_at = ? WHERE user_id = ? AND season_id = ?`,
		delta,
		now,
		userID,
		seasonID,
	).Error; err != nil {
		return ledgerdomain.UserLevel{}, 0, levelUpdateErr(err)
	}

	after, err := findUserLevel(ctx, tx, userID, seasonID)
	if err != nil || after == nil {
		return ledgerdomain.UserLevel{}, 0, levelUpdateErr(err)
	}

	newLevel := level.CalculateLevel(after.XP)
	if newLevel != after.Level {
		if err := tx.WithContext(ctx).Exec(
			`UPDATE user_levels SET level = ? WHERE user_id = ? AND season_id = ?`,
			newLevel,
			userID,
			seasonID,
		).Error; err != nil {
			return ledgerdomain.UserLevel{}, 0, levelUpdateErr(err)
		}
		after.Level = newLevel
	}

	if after.Level != before.Level && s.outbox != nil {
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type:        events.EventUserLevelChanged,
			AggregateID: userID,
			Payload: map[string]any{
				"user_id":        userID,
				"season_id":      seasonID,
				"previous_level": before.Level,
				"level":          after.Level,
				"xp":             after.XP,
			},
		}); err != nil {
			return ledgerdomain.UserLevel{}, 0, err
		}
	}

	return *after, before.Level, nil
}

func findUserLevel(ctx context.Context, db *gorm.DB, userID, seasonID string) (*ledgerdomain.UserLevel, error) {
	var rows []ledgerdomain.UserLevel
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, season_id, xp, level, updated_at FROM user_levels WHERE user_id = ? AND season_id = ?`,
		userID,
		seasonID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func levelUpdateErr(err error) error {
	if err == nil {
		return ledgerdomain.ErrLevelUpdateFailed
	}
	return fmt.Errorf("%w: %v", ledgerdomain.ErrLevelUpdateFailed, err)
}

func normalizeGrant(req ledgerdomain.GrantRequest) (ledgerdomain.GrantRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.SeasonID = strings.TrimSpace(req.SeasonID)
	req.SourceID = strings.TrimSpace(req.SourceID)
	req.Description = strings.TrimSpace(req.Description)

	switch {
	case req.UserID == "":
		return req, ledgerdomain.ErrInvalidUser
	case req.SeasonID == "":
		return req, ledgerdomain.ErrInvalidSeason
	case !req.SourceType.Valid():
		return req, ledgerdomain.ErrInvalidSourceType
	case req.Amount == 0:
		return req, ledgerdomain.ErrInvalidAmount
	}
	if req.Description == "" {
		req.Description = ledgerdomain.DefaultDescription(req.SourceType)
	}
	return req, nil
}

// IsLevelSnapshotError reports whether err came from the level snapshot step.
func IsLevelSnapshotError(err error) bool {
	return errors.Is(err, ledgerdomain.ErrLevelInitFailed) || errors.Is(err, ledgerdomain.ErrLevelUpdateFailed)
}
