package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	"github.com/smallbiznis/actionboard/internal/clock"
	"github.com/smallbiznis/actionboard/internal/config"
	"github.com/smallbiznis/actionboard/internal/events"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	"github.com/smallbiznis/actionboard/internal/level"
	"github.com/smallbiznis/actionboard/internal/lock"
	missiondomain "github.com/smallbiznis/actionboard/internal/mission/domain"
	"github.com/smallbiznis/actionboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/actionboard/internal/observability/metrics"
	"github.com/smallbiznis/actionboard/internal/observability/tracing"
	seasondomain "github.com/smallbiznis/actionboard/internal/season/domain"
	"github.com/smallbiznis/actionboard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	postingBonusLabel = "ポスティング活動ボーナス"
	posterBonusLabel  = "ポスターボーナス"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock           `optional:"true"`
	Rules        *config.XPRulesHolder `optional:"true"`
	Locker       lock.Locker           `optional:"true"`
	Missions     missiondomain.Repository
	Seasons      seasondomain.Repository
	Achievements achievementdomain.Repository
	Artifacts    artifactdomain.Repository
	Ledger       ledgerdomain.Service
	Outbox       *events.Outbox                             `optional:"true"`
	Provider     achievementdomain.ProviderDuplicateChecker `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics                        `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	rules        *config.XPRulesHolder
	locker       lock.Locker
	missions     missiondomain.Repository
	seasons      seasondomain.Repository
	achievements achievementdomain.Repository
	artifacts    artifactdomain.Repository
	ledger       ledgerdomain.Service
	outbox       *events.Outbox
	provider     achievementdomain.ProviderDuplicateChecker
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) achievementdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	rules := p.Rules
	if rules == nil {
		rules = config.NewStaticXPRules(config.DefaultXPRules())
	}
	locker := p.Locker
	if locker == nil {
		locker = lock.NewLocalLocker(lock.Options{})
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("achievement.service"),
		clock:        c,
		rules:        rules,
		locker:       locker,
		missions:     p.Missions,
		seasons:      p.Seasons,
		achievements: p.Achievements,
		artifacts:    p.Artifacts,
		ledger:       p.Ledger,
		outbox:       p.Outbox,
		provider:     p.Provider,
		obsMetrics:   p.ObsMetrics,
	}
}

// submission is the validated input of one Achieve call.
type submission struct {
	mission    *missiondomain.Mission
	season     *seasondomain.Season
	rules      config.XPRules
	kind       artifactdomain.ArtifactType
	payload    artifactdomain.Payload
	submission artifactdomain.Submission
	firstBoard bool
	// boardRepeat is set when the user already completed the board mission
	// on the same board. The poster bonus is skipped then.
	boardRepeat bool
}

func (s *Service) Achieve(ctx context.Context, req achievementdomain.AchieveRequest) (result achievementdomain.AchieveResult, err error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.MissionID = strings.TrimSpace(req.MissionID)
	log := logger.WithMission(logger.WithUser(logger.WithContext(ctx, s.log), req.UserID), req.MissionID, "")

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(achievementdomain.KindOf(err))
		}
		s.obsMetrics.RecordAchievement(ctx, string(req.ArtifactType), outcome)
	}()

	if req.UserID == "" {
		return result, achievementdomain.Validation(achievementdomain.MessageUnauthenticated, achievementdomain.ErrUnauthenticated)
	}
	if req.MissionID == "" {
		return result, achievementdomain.Validation(achievementdomain.MessageMissingMission, achievementdomain.ErrMissionNotFound)
	}

	release, err := s.acquire(ctx, req.UserID, req.MissionID)
	if err != nil {
		return result, err
	}
	defer release(context.WithoutCancel(ctx))

	sub, err := s.prepare(ctx, log, req)
	if err != nil {
		return result, err
	}

	achievement := achievementdomain.Achievement{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		MissionID: sub.mission.ID,
		SeasonID:  sub.season.ID,
		CreatedAt: s.clock.Now(),
	}
	log = logger.WithMission(log, "", achievement.ID)

	var artifactID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		artifactID, txErr = s.record(ctx, tx, req, sub, achievement)
		return txErr
	})
	if err != nil {
		var domainErr *achievementdomain.Error
		if !errors.As(err, &domainErr) {
			err = achievementdomain.Storage(achievementdomain.MessageAchievementFailed, err)
		}
		log.Warn("achievement not recorded", zap.Error(err))
		return result, err
	}

	var (
		granted   int64
		userLevel *ledgerdomain.UserLevel
	)

	if sub.boardRepeat {
		log.Info("poster bonus skipped for completed board", zap.String("board_id", strings.TrimSpace(req.BoardID)))
	} else if bonus, ok := s.bonusRequest(sub, achievement); ok {
		res, bonusErr := s.ledger.GrantBonus(ctx, bonus)
		if bonusErr != nil {
			log.Warn("bonus xp grant failed", zap.String("label", bonus.Label), zap.Error(bonusErr))
			s.obsMetrics.RecordSoftFailure(ctx, "bonus_grant")
		} else {
			granted += res.XPGranted
			ul := res.UserLevel
			userLevel = &ul
		}
	}

	if sub.rules.EarnsBaseXP(sub.mission.RequiredArtifactType) {
		res, grantErr := s.ledger.Grant(ctx, ledgerdomain.GrantRequest{
			UserID:      req.UserID,
			SeasonID:    sub.season.ID,
			Amount:      level.CalculateMissionXP(sub.mission.Difficulty, sub.mission.IsFeatured),
			SourceType:  ledgerdomain.SourceTypeMissionCompletion,
			SourceID:    achievement.ID,
			Description: fmt.Sprintf("ミッション「%s」達成による経験値獲得", sub.mission.Title),
		})
		if grantErr != nil {
			log.Error("mission xp grant failed", zap.Error(grantErr))
			s.obsMetrics.RecordSoftFailure(ctx, "base_xp_grant")
		} else {
			granted += res.XPGranted
			ul := res.UserLevel
			userLevel = &ul
		}
	} else if userLevel == nil {
		ul, levelErr := s.ledger.GetUserLevel(ctx, req.UserID, sub.season.ID)
		if levelErr != nil {
			log.Warn("user level lookup failed", zap.Error(levelErr))
			s.obsMetrics.RecordSoftFailure(ctx, "user_level_read")
		}
		userLevel = ul
	}

	log.Info("mission achieved",
		zap.String("artifact_type", string(sub.kind)),
		zap.Int64("xp_granted", granted),
		zap.Bool("first_board_completion", sub.firstBoard),
	)
	tracing.Annotate(ctx, append(
		tracing.MissionAttributes(req.UserID, sub.mission.ID, achievement.ID),
		tracing.AttrArtifactType.String(string(sub.kind)),
		tracing.AttrXPAmount.Int64(granted),
	)...)

	return achievementdomain.AchieveResult{
		Message:              achievementdomain.MessageAchieved,
		XPGranted:            granted,
		UserLevel:            userLevel,
		ArtifactID:           artifactID,
		FirstBoardCompletion: sub.firstBoard,
	}, nil
}

// prepare runs every read and check that must pass before the first write.
func (s *Service) prepare(ctx context.Context, log *zap.Logger, req achievementdomain.AchieveRequest) (submission, error) {
	rules := s.rules.Get()

	mission, err := s.missions.FindByID(ctx, s.db, req.MissionID)
	if err != nil {
		return submission{}, achievementdomain.Storage(achievementdomain.MessageMissionFetchFailed, err)
	}
	if mission == nil {
		return submission{}, achievementdomain.Eligibility(achievementdomain.MessageMissionFetchFailed, achievementdomain.ErrMissionNotFound)
	}

	kind := req.ArtifactType
	if kind == "" {
		kind = mission.RequiredArtifactType
	}
	if kind != mission.RequiredArtifactType {
		return submission{}, achievementdomain.Validation(achievementdomain.MessageArtifactTypeMismatch, achievementdomain.ErrArtifactTypeMismatch)
	}

	sub := req.Submission
	if sub == nil {
		sub = emptySubmission(kind)
	}
	if sub == nil {
		return submission{}, achievementdomain.Validation(achievementdomain.MessageSubmissionRequired, artifactdomain.ErrInvalidSubmission)
	}
	sub = artifactdomain.Normalize(sub)
	if sub.Type() != kind {
		return submission{}, achievementdomain.Validation(achievementdomain.MessageArtifactTypeMismatch, achievementdomain.ErrArtifactTypeMismatch)
	}
	if err := sub.Validate(rules.Limits()); err != nil {
		return submission{}, achievementdomain.Validation(err.Error(), err)
	}

	payload := artifactdomain.BuildPayload(kind, sub)
	if kind.StoresArtifact() && !payload.Satisfies(kind) {
		return submission{}, achievementdomain.Validation(achievementdomain.MessagePayloadRequired, artifactdomain.ErrEmptyPayload)
	}

	if err := s.checkEligibility(ctx, req.UserID, *mission, kind, sub); err != nil {
		return submission{}, err
	}

	season, err := s.seasons.FindActive(ctx, s.db)
	if err != nil || season == nil {
		if err != nil {
			log.Error("active season lookup failed", zap.Error(err))
		}
		return submission{}, achievementdomain.Eligibility(achievementdomain.MessageSeasonNotFound, achievementdomain.ErrNoActiveSeason)
	}

	firstBoard, boardRepeat := s.boardCompletion(ctx, log, req, *mission, rules)
	return submission{
		mission:     mission,
		season:      season,
		rules:       rules,
		kind:        kind,
		payload:     payload,
		submission:  sub,
		firstBoard:  firstBoard,
		boardRepeat: boardRepeat,
	}, nil
}

// record writes the achievement, its artifact and side record, and the
// achievement.created event with tx.
func (s *Service) record(ctx context.Context, tx *gorm.DB, req achievementdomain.AchieveRequest, sub submission, achievement achievementdomain.Achievement) (string, error) {
	if err := s.achievements.Insert(ctx, tx, &achievement); err != nil {
		return "", achievementdomain.Storage(achievementdomain.MessageAchievementFailed, err)
	}

	var artifactID string
	if sub.kind.StoresArtifact() {
		artifact := artifactdomain.MissionArtifact{
			ID:               uuid.NewString(),
			AchievementID:    achievement.ID,
			UserID:           req.UserID,
			ArtifactType:     sub.kind,
			LinkURL:          sub.payload.LinkURL,
			TextContent:      sub.payload.TextContent,
			ImageStoragePath: sub.payload.ImageStoragePath,
			Description:      optional(req.ArtifactDescription),
			CreatedAt:        achievement.CreatedAt,
		}
		if err := s.artifacts.Insert(ctx, tx, &artifact); err != nil {
			if db.IsCheckViolation(err) {
				return "", achievementdomain.Validation(achievementdomain.MessagePayloadRequired, artifactdomain.ErrEmptyPayload)
			}
			return "", achievementdomain.Storage(achievementdomain.MessageArtifactFailed, err)
		}
		artifactID = artifact.ID

		if err := s.writeSideRecords(ctx, tx, req, sub, artifact); err != nil {
			return "", err
		}
	}

	if s.outbox != nil {
		err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type:        events.EventAchievementCreated,
			AggregateID: achievement.ID,
			DedupeKey:   events.EventAchievementCreated + ":" + achievement.ID,
			Payload: map[string]any{
				"achievement_id":         achievement.ID,
				"user_id":                achievement.UserID,
				"mission_id":             achievement.MissionID,
				"season_id":              achievement.SeasonID,
				"artifact_type":          string(sub.kind),
				"artifact_id":            artifactID,
				"first_board_completion": sub.firstBoard,
				"occurred_at":            achievement.CreatedAt.Format(time.RFC3339Nano),
			},
		})
		if err != nil {
			return "", achievementdomain.Storage(achievementdomain.MessageAchievementFailed, err)
		}
	}
	return artifactID, nil
}

func (s *Service) writeSideRecords(ctx context.Context, tx *gorm.DB, req achievementdomain.AchieveRequest, sub submission, artifact artifactdomain.MissionArtifact) error {
	switch v := sub.submission.(type) {
	case artifactdomain.ImageWithGeolocationSubmission:
		geo := artifactdomain.ArtifactGeolocation{
			ID:                uuid.NewString(),
			MissionArtifactID: artifact.ID,
			Lat:               v.Lat,
			Lon:               v.Lon,
			Accuracy:          v.Accuracy,
			Altitude:          v.Altitude,
		}
		if err := s.artifacts.InsertGeolocation(ctx, tx, &geo); err != nil {
			return achievementdomain.Storage(achievementdomain.MessageGeolocationFailed, err)
		}
	case artifactdomain.PostingSubmission:
		activity := artifactdomain.PostingActivity{
			ID:                uuid.NewString(),
			MissionArtifactID: artifact.ID,
			PostingCount:      v.PostingCount,
			LocationText:      v.LocationText,
			ShapeID:           optional(req.ShapeID),
			CreatedAt:         artifact.CreatedAt,
		}
		if err := s.artifacts.InsertPostingActivity(ctx, tx, &activity); err != nil {
			return achievementdomain.Storage(achievementdomain.MessagePostingFailed, err)
		}
	case artifactdomain.PosterSubmission:
		activity := artifactdomain.PosterActivity{
			ID:                uuid.NewString(),
			UserID:            req.UserID,
			MissionArtifactID: artifact.ID,
			PosterCount:       sub.rules.PosterCount,
			Prefecture:        v.Prefecture,
			City:              v.City,
			Number:            v.BoardNumber,
			Name:              v.BoardName,
			Note:              v.BoardNote,
			Address:           v.BoardAddress,
			Lat:               v.BoardLat,
			Long:              v.BoardLong,
			BoardID:           optional(req.BoardID),
			CreatedAt:         artifact.CreatedAt,
		}
		if err := s.artifacts.InsertPosterActivity(ctx, tx, &activity); err != nil {
			return achievementdomain.Storage(achievementdomain.MessagePosterFailed, err)
		}
	}
	return nil
}

// bonusRequest describes the per-unit bonus of POSTING and POSTER submissions.
func (s *Service) bonusRequest(sub submission, achievement achievementdomain.Achievement) (ledgerdomain.BonusRequest, bool) {
	req := ledgerdomain.BonusRequest{
		UserID:        achievement.UserID,
		SeasonID:      achievement.SeasonID,
		AchievementID: achievement.ID,
		Featured:      sub.mission.IsFeatured,
	}
	switch v := sub.submission.(type) {
	case artifactdomain.PostingSubmission:
		req.Count = v.PostingCount
		req.PointsPerUnit = sub.rules.PostingPointsPerUnit
		req.Label = postingBonusLabel
	case artifactdomain.PosterSubmission:
		req.Count = sub.rules.PosterCount
		req.PointsPerUnit = sub.rules.PosterPointsPerUnit
		req.Label = posterBonusLabel
	default:
		return ledgerdomain.BonusRequest{}, false
	}
	return req, true
}

func (s *Service) acquire(ctx context.Context, userID, missionID string) (lock.ReleaseFunc, error) {
	release, err := s.locker.Acquire(ctx, lock.SubmissionKey(userID, missionID))
	if err == nil {
		return release, nil
	}
	if errors.Is(err, lock.ErrLocked) {
		s.obsMetrics.RecordLockContention(ctx, s.locker.Backend())
		return nil, achievementdomain.Eligibility(achievementdomain.MessageSubmissionInProgress, achievementdomain.ErrSubmissionInProgress)
	}
	return nil, achievementdomain.Storage(achievementdomain.MessageAchievementFailed, err)
}

// emptySubmission returns the submission of types that carry no input.
func emptySubmission(t artifactdomain.ArtifactType) artifactdomain.Submission {
	switch t {
	case artifactdomain.ArtifactTypeNone:
		return artifactdomain.NoneSubmission{}
	case artifactdomain.ArtifactTypeLinkAccess:
		return artifactdomain.LinkAccessSubmission{}
	case artifactdomain.ArtifactTypeQuiz:
		return artifactdomain.QuizSubmission{}
	default:
		return nil
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
