package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	achievementrepo "github.com/smallbiznis/actionboard/internal/achievement/repository"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	artifactrepo "github.com/smallbiznis/actionboard/internal/artifact/repository"
	"github.com/smallbiznis/actionboard/internal/clock"
	"github.com/smallbiznis/actionboard/internal/config"
	"github.com/smallbiznis/actionboard/internal/events"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/actionboard/internal/ledger/service"
	"github.com/smallbiznis/actionboard/internal/lock"
	missiondomain "github.com/smallbiznis/actionboard/internal/mission/domain"
	missionrepo "github.com/smallbiznis/actionboard/internal/mission/repository"
	seasondomain "github.com/smallbiznis/actionboard/internal/season/domain"
	seasonrepo "github.com/smallbiznis/actionboard/internal/season/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE missions (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		difficulty INTEGER NOT NULL,
		required_artifact_type TEXT NOT NULL,
		max_achievement_count INTEGER,
		is_featured BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE seasons (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 0,
		start_date DATETIME NOT NULL,
		end_date DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE achievements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		mission_id TEXT NOT NULL REFERENCES missions(id),
		season_id TEXT NOT NULL REFERENCES seasons(id),
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE mission_artifacts (
		id TEXT PRIMARY KEY,
		achievement_id TEXT NOT NULL UNIQUE REFERENCES achievements(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		artifact_type TEXT NOT NULL,
		link_url TEXT,
		text_content TEXT,
		image_storage_path TEXT,
		description TEXT,
		created_at DATETIME NOT NULL,
		CONSTRAINT mission_artifacts_payload CHECK (
			artifact_type = 'QUIZ' OR link_url IS NOT NULL OR text_content IS NOT NULL OR image_storage_path IS NOT NULL
		)
	)`,
	`CREATE TABLE mission_artifact_geolocations (
		id TEXT PRIMARY KEY,
		mission_artifact_id TEXT NOT NULL REFERENCES mission_artifacts(id) ON DELETE CASCADE,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		accuracy REAL,
		altitude REAL
	)`,
	`CREATE TABLE posting_activities (
		id TEXT PRIMARY KEY,
		mission_artifact_id TEXT NOT NULL REFERENCES mission_artifacts(id) ON DELETE CASCADE,
		posting_count INTEGER NOT NULL,
		location_text TEXT NOT NULL,
		shape_id TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE poster_activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		mission_artifact_id TEXT NOT NULL REFERENCES mission_artifacts(id) ON DELETE CASCADE,
		poster_count INTEGER NOT NULL,
		prefecture TEXT NOT NULL,
		city TEXT NOT NULL,
		number TEXT NOT NULL,
		name TEXT,
		note TEXT,
		address TEXT,
		lat REAL,
		long REAL,
		board_id TEXT,
		created_at DATETIME NOT NULL
	)`,
}

var testNow = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	ledger ledgerdomain.Service
	season seasondomain.Season
}

type option func(*Params)

func withRules(rules config.XPRules) option {
	return func(p *Params) { p.Rules = config.NewStaticXPRules(rules) }
}

func withLedger(wrap func(ledgerdomain.Service) ledgerdomain.Service) option {
	return func(p *Params) { p.Ledger = wrap(p.Ledger) }
}

func withLocker(l lock.Locker) option {
	return func(p *Params) { p.Locker = l }
}

func withProvider(checker achievementdomain.ProviderDuplicateChecker) option {
	return func(p *Params) { p.Provider = checker }
}

func setup(t *testing.T, opts ...option) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.XpTransaction{},
		&ledgerdomain.UserLevel{},
		&events.OutboxEvent{},
	))

	fake := clock.NewFakeClock(testNow)
	outbox := events.NewOutbox(events.OutboxParams{DB: db, Log: zap.NewNop(), Clock: fake})
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: zap.NewNop(), Clock: fake, Outbox: outbox})

	season := seasondomain.Season{
		ID:        uuid.NewString(),
		Slug:      "season-1",
		Name:      "Season 1",
		IsActive:  true,
		StartDate: testNow.AddDate(0, -1, 0),
		CreatedAt: testNow,
	}
	require.NoError(t, seasonrepo.Provide().Insert(context.Background(), db, &season))

	p := Params{
		DB:           db,
		Log:          zap.NewNop(),
		Clock:        fake,
		Rules:        config.NewStaticXPRules(config.DefaultXPRules()),
		Missions:     missionrepo.Provide(),
		Seasons:      seasonrepo.Provide(),
		Achievements: achievementrepo.Provide(),
		Artifacts:    artifactrepo.Provide(),
		Ledger:       ledger,
		Outbox:       outbox,
	}
	for _, opt := range opts {
		opt(&p)
	}

	return &fixture{
		db:     db,
		svc:    NewService(p).(*Service),
		ledger: ledger,
		season: season,
	}
}

func (f *fixture) mission(t *testing.T, m missiondomain.Mission) missiondomain.Mission {
	t.Helper()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Slug == "" {
		m.Slug = "mission-" + m.ID[:8]
	}
	if m.Title == "" {
		m.Title = "テストミッション"
	}
	if m.Difficulty == 0 {
		m.Difficulty = 1
	}
	m.CreatedAt = testNow
	require.NoError(t, missionrepo.Provide().Insert(context.Background(), f.db, &m))
	return m
}

func (f *fixture) achieve(t *testing.T, userID string, m missiondomain.Mission, sub artifactdomain.Submission) achievementdomain.AchieveResult {
	t.Helper()
	res, err := f.svc.Achieve(context.Background(), achievementdomain.AchieveRequest{
		UserID:       userID,
		MissionID:    m.ID,
		ArtifactType: m.RequiredArtifactType,
		Submission:   sub,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Raw("SELECT COUNT(1) FROM "+table).Scan(&n).Error)
	return n
}

func (f *fixture) latestAchievementID(t *testing.T, userID string) string {
	t.Helper()
	var id string
	require.NoError(t, f.db.Raw(
		`SELECT id FROM achievements WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID,
	).Scan(&id).Error)
	require.NotEmpty(t, id)
	return id
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

var errLedgerDown = errors.New("ledger unavailable")

// failingLedger delegates to the real ledger except for the operations it is told to fail.
type failingLedger struct {
	ledgerdomain.Service
	failBonus  bool
	failGrant  bool
	failRevoke bool
}

func (l *failingLedger) GrantBonus(ctx context.Context, req ledgerdomain.BonusRequest) (ledgerdomain.GrantResult, error) {
	if l.failBonus {
		return ledgerdomain.GrantResult{}, errLedgerDown
	}
	return l.Service.GrantBonus(ctx, req)
}

func (l *failingLedger) Grant(ctx context.Context, req ledgerdomain.GrantRequest) (ledgerdomain.GrantResult, error) {
	if (l.failGrant && req.Amount > 0) || (l.failRevoke && req.Amount < 0) {
		return ledgerdomain.GrantResult{}, fmt.Errorf("%w: %w", ledgerdomain.ErrLevelUpdateFailed, errLedgerDown)
	}
	return l.Service.Grant(ctx, req)
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string) (lock.ReleaseFunc, error) {
	return nil, lock.ErrLocked
}

func (heldLocker) Backend() string { return "held" }

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) AlreadyRecorded(ctx context.Context, userID string, mission missiondomain.Mission, submission artifactdomain.Submission) (bool, error) {
	args := m.Called(ctx, userID, mission.ID, submission)
	return args.Bool(0), args.Error(1)
}
