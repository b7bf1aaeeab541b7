package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	"github.com/smallbiznis/actionboard/internal/events"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	"github.com/smallbiznis/actionboard/internal/level"
	"github.com/smallbiznis/actionboard/internal/observability/logger"
	"github.com/smallbiznis/actionboard/internal/observability/tracing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Cancel deletes an achievement the caller owns and appends one compensating
// ledger row. A revocation failure after the delete is reported as partial.
func (s *Service) Cancel(ctx context.Context, req achievementdomain.CancelRequest) (result achievementdomain.CancelResult, err error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.AchievementID = strings.TrimSpace(req.AchievementID)
	req.MissionID = strings.TrimSpace(req.MissionID)
	log := logger.WithMission(logger.WithUser(logger.WithContext(ctx, s.log), req.UserID), req.MissionID, req.AchievementID)

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(achievementdomain.KindOf(err))
		}
		s.obsMetrics.RecordCancellation(ctx, outcome)
	}()

	if req.UserID == "" {
		return result, achievementdomain.Validation(achievementdomain.MessageUnauthenticated, achievementdomain.ErrUnauthenticated)
	}
	if req.AchievementID == "" {
		return result, achievementdomain.Eligibility(achievementdomain.MessageAchievementNotFound, achievementdomain.ErrAchievementNotFound)
	}

	achievement, err := s.achievements.FindByID(ctx, s.db, req.AchievementID)
	if err != nil {
		log.Warn("achievement lookup failed", zap.Error(err))
		return result, achievementdomain.Eligibility(achievementdomain.MessageAchievementNotFound, achievementdomain.ErrAchievementNotFound)
	}
	if achievement == nil || achievement.UserID != req.UserID ||
		(req.MissionID != "" && achievement.MissionID != req.MissionID) {
		return result, achievementdomain.Eligibility(achievementdomain.MessageAchievementNotFound, achievementdomain.ErrAchievementNotFound)
	}
	if achievement.MissionID == "" {
		return result, achievementdomain.Validation(achievementdomain.MessageMissingMission, achievementdomain.ErrMissionNotFound)
	}
	if achievement.SeasonID == "" {
		return result, achievementdomain.Validation(achievementdomain.MessageMissingSeason, achievementdomain.ErrNoActiveSeason)
	}

	release, err := s.acquire(ctx, req.UserID, achievement.MissionID)
	if err != nil {
		return result, err
	}
	defer release(context.WithoutCancel(ctx))

	mission, err := s.missions.FindByID(ctx, s.db, achievement.MissionID)
	if err != nil {
		return result, achievementdomain.Storage(achievementdomain.MessageMissionFetchFailed, err)
	}
	if mission == nil {
		return result, achievementdomain.Eligibility(achievementdomain.MessageMissionFetchFailed, achievementdomain.ErrMissionNotFound)
	}

	rules := s.rules.Get()

	// Bonus rows reference the achievement by source id only.
	var bonus int64
	if rules.IsBonusMission(mission.Slug) {
		bonus, err = s.ledger.BonusForAchievement(ctx, req.UserID, achievement.ID)
		if err != nil {
			log.Warn("bonus lookup failed", zap.Error(err))
			s.obsMetrics.RecordSoftFailure(ctx, "bonus_lookup")
			bonus = 0
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.achievements.Delete(ctx, tx, achievement.ID); err != nil {
			return err
		}
		if s.outbox == nil {
			return nil
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:        events.EventAchievementCancelled,
			AggregateID: achievement.ID,
			DedupeKey:   events.EventAchievementCancelled + ":" + achievement.ID,
			Payload: map[string]any{
				"achievement_id": achievement.ID,
				"user_id":        achievement.UserID,
				"mission_id":     achievement.MissionID,
				"season_id":      achievement.SeasonID,
				"occurred_at":    s.clock.Now().Format(time.RFC3339Nano),
			},
		})
	})
	if err != nil {
		log.Error("achievement delete failed", zap.Error(err))
		return result, achievementdomain.Storage(achievementdomain.MessageCancelFailed, err)
	}

	// Revocation mirrors Achieve: types exempt from base XP only lose their bonus.
	var base int64
	if rules.EarnsBaseXP(mission.RequiredArtifactType) {
		base = level.CalculateMissionXP(mission.Difficulty, mission.IsFeatured)
	}
	total := base + bonus

	if total == 0 {
		ul, levelErr := s.ledger.GetUserLevel(ctx, req.UserID, achievement.SeasonID)
		if levelErr != nil {
			log.Warn("user level lookup failed", zap.Error(levelErr))
			s.obsMetrics.RecordSoftFailure(ctx, "user_level_read")
		}
		return achievementdomain.CancelResult{Message: achievementdomain.MessageCancelled, UserLevel: ul}, nil
	}

	res, err := s.ledger.Grant(ctx, ledgerdomain.GrantRequest{
		UserID:      req.UserID,
		SeasonID:    achievement.SeasonID,
		Amount:      -total,
		SourceType:  ledgerdomain.SourceTypeMissionCancellation,
		SourceID:    achievement.ID,
		Description: fmt.Sprintf("ミッション「%s」の提出取り消しによる経験値減算", mission.Title),
	})
	if err != nil {
		log.Error("xp revocation failed after delete",
			zap.Int64("xp_to_revoke", total),
			zap.Error(err),
		)
		return result, achievementdomain.Partial(revocationDetail(err), err)
	}

	log.Info("achievement cancelled",
		zap.Int64("base_xp", base),
		zap.Int64("bonus_xp", bonus),
	)
	tracing.Annotate(ctx, append(
		tracing.MissionAttributes(req.UserID, achievement.MissionID, achievement.ID),
		tracing.AttrXPAmount.Int64(-total),
	)...)

	ul := res.UserLevel
	return achievementdomain.CancelResult{
		Message:   achievementdomain.MessageCancelled,
		XPRevoked: total,
		UserLevel: &ul,
	}, nil
}

// revocationDetail maps a ledger failure to the sentence shown to the user.
func revocationDetail(err error) string {
	switch {
	case errors.Is(err, ledgerdomain.ErrLevelInitFailed):
		return ledgerdomain.MessageLevelInitFailed
	case errors.Is(err, ledgerdomain.ErrLevelUpdateFailed):
		return ledgerdomain.MessageLevelUpdateFailed
	default:
		return err.Error()
	}
}
