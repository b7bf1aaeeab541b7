package migration_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	achievementrepo "github.com/smallbiznis/actionboard/internal/achievement/repository"
	achievementservice "github.com/smallbiznis/actionboard/internal/achievement/service"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	artifactrepo "github.com/smallbiznis/actionboard/internal/artifact/repository"
	"github.com/smallbiznis/actionboard/internal/events"
	ledgerservice "github.com/smallbiznis/actionboard/internal/ledger/service"
	"github.com/smallbiznis/actionboard/internal/migration"
	missiondomain "github.com/smallbiznis/actionboard/internal/mission/domain"
	missionrepo "github.com/smallbiznis/actionboard/internal/mission/repository"
	"github.com/smallbiznis/actionboard/internal/seed"
	seasonrepo "github.com/smallbiznis/actionboard/internal/season/repository"
	"github.com/smallbiznis/actionboard/pkg/db"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	db        *gorm.DB
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcpostgres.Run(s.ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("actionboard"),
		tcpostgres.WithUsername("actionboard"),
		tcpostgres.WithPassword("actionboard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	s.Require().NoError(err)

	s.Require().NoError(migration.Run(s.ctx, s.db))
	// A second run is a no-op.
	s.Require().NoError(migration.Run(s.ctx, s.db))
	s.Require().NoError(seed.EnsureActiveSeason(s.ctx, s.db, "integration", time.Now().UTC()))
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *PostgresSuite) newMission(kind artifactdomain.ArtifactType, slug string) missiondomain.Mission {
	m := missiondomain.Mission{
		ID:                   uuid.NewString(),
		Slug:                 slug,
		Title:                "統合テスト",
		Difficulty:           2,
		RequiredArtifactType: kind,
		CreatedAt:            time.Now().UTC(),
	}
	s.Require().NoError(missionrepo.Provide().Insert(s.ctx, s.db, &m))
	return m
}

func (s *PostgresSuite) TestPayloadCheckConstraint() {
	m := s.newMission(artifactdomain.ArtifactTypeText, "check-"+uuid.NewString()[:8])
	season, err := seasonrepo.Provide().FindActive(s.ctx, s.db)
	s.Require().NoError(err)
	s.Require().NotNil(season)

	achievement := achievementdomain.Achievement{
		ID:        uuid.NewString(),
		UserID:    "user-check",
		MissionID: m.ID,
		SeasonID:  season.ID,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(achievementrepo.Provide().Insert(s.ctx, s.db, &achievement))

	err = artifactrepo.Provide().Insert(s.ctx, s.db, &artifactdomain.MissionArtifact{
		ID:            uuid.NewString(),
		AchievementID: achievement.ID,
		UserID:        "user-check",
		ArtifactType:  artifactdomain.ArtifactTypeText,
		CreatedAt:     time.Now().UTC(),
	})
	s.Require().Error(err)
	s.True(db.IsCheckViolation(err))
}

func (s *PostgresSuite) TestAchieveAndCancelRoundTrip() {
	log := zap.NewNop()
	outbox := events.NewOutbox(events.OutboxParams{DB: s.db, Log: log})
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: s.db, Log: log, Outbox: outbox})
	svc := achievementservice.NewService(achievementservice.Params{
		DB:           s.db,
		Log:          log,
		Missions:     missionrepo.Provide(),
		Seasons:      seasonrepo.Provide(),
		Achievements: achievementrepo.Provide(),
		Artifacts:    artifactrepo.Provide(),
		Ledger:       ledger,
		Outbox:       outbox,
	})

	m := s.newMission(artifactdomain.ArtifactTypePosting, "posting-magazine")
	res, err := svc.Achieve(s.ctx, achievementdomain.AchieveRequest{
		UserID:     "user-pg",
		MissionID:  m.ID,
		Submission: artifactdomain.PostingSubmission{PostingCount: 10, LocationText: "横浜市"},
	})
	s.Require().NoError(err)
	s.Equal(int64(500), res.XPGranted)

	var achievementID string
	s.Require().NoError(s.db.Raw(`SELECT id FROM achievements WHERE user_id = ?`, "user-pg").Scan(&achievementID).Error)

	out, err := svc.Cancel(s.ctx, achievementdomain.CancelRequest{UserID: "user-pg", AchievementID: achievementID})
	s.Require().NoError(err)
	s.Equal(int64(500), out.XPRevoked)
	s.Require().NotNil(out.UserLevel)
	s.Equal(int64(0), out.UserLevel.XP)

	var remaining int64
	s.Require().NoError(s.db.Raw(`SELECT COUNT(1) FROM posting_activities`).Scan(&remaining).Error)
	s.Zero(remaining)

	check, err := ledger.Verify(s.ctx, "user-pg", out.UserLevel.SeasonID)
	s.Require().NoError(err)
	s.True(check.Consistent)
}
