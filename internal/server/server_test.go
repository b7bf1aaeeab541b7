package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	"github.com/smallbiznis/actionboard/internal/observability/logger"
	"github.com/smallbiznis/actionboard/internal/ratelimit"
	seasondomain "github.com/smallbiznis/actionboard/internal/season/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockAchievementService struct {
	mock.Mock
}

func (m *mockAchievementService) Achieve(ctx context.Context, req achievementdomain.AchieveRequest) (achievementdomain.AchieveResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(achievementdomain.AchieveResult), args.Error(1)
}

func (m *mockAchievementService) Cancel(ctx context.Context, req achievementdomain.CancelRequest) (achievementdomain.CancelResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(achievementdomain.CancelResult), args.Error(1)
}

type stubLedger struct {
	ledgerdomain.Service
	snapshot *ledgerdomain.UserLevel
	rank     int64
	history  []ledgerdomain.XpTransaction
	limit    int
}

func (l *stubLedger) GetUserLevel(context.Context, string, string) (*ledgerdomain.UserLevel, error) {
	return l.snapshot, nil
}

func (l *stubLedger) Rank(context.Context, string, string) (int64, error) {
	return l.rank, nil
}

func (l *stubLedger) History(_ context.Context, _, _ string, limit int) ([]ledgerdomain.XpTransaction, error) {
	l.limit = limit
	return l.history, nil
}

type stubSeasons struct {
	active *seasondomain.Season
}

func (s stubSeasons) Insert(context.Context, *gorm.DB, *seasondomain.Season) error { return nil }

func (s stubSeasons) FindActive(context.Context, *gorm.DB) (*seasondomain.Season, error) {
	return s.active, nil
}

type harness struct {
	engine *gin.Engine
	svc    *mockAchievementService
	ledger *stubLedger
}

func newHarness(t *testing.T, limiter ratelimit.Limiter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{ErrorClassifier: classifyErrorForLog}))
	engine.Use(APIMetrics(nil))
	engine.Use(ErrorHandlingMiddleware())

	h := &harness{
		engine: engine,
		svc:    &mockAchievementService{},
		ledger: &stubLedger{},
	}
	NewServer(ServerParams{
		Gin:            engine,
		DB:             db,
		Log:            zap.NewNop(),
		AchievementSvc: h.svc,
		LedgerSvc:      h.ledger,
		Seasons:        stubSeasons{active: &seasondomain.Season{ID: "season-1", IsActive: true}},
		SubmitLimiter:  limiter,
	})
	return h
}

func (h *harness) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(logger.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAchieveMissionDecodesSubmission(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.On("Achieve", mock.Anything, achievementdomain.AchieveRequest{
		UserID:       "user-1",
		MissionID:    "mission-1",
		ArtifactType: artifactdomain.ArtifactTypePosting,
		Submission:   artifactdomain.PostingSubmission{PostingCount: 3, LocationText: "渋谷区"},
		ShapeID:      "shape-1",
	}).Return(achievementdomain.AchieveResult{
		Message:   achievementdomain.MessageAchieved,
		XPGranted: 150,
	}, nil)

	rec := h.do(http.MethodPost, "/v1/missions/mission-1/achievements", "user-1", map[string]any{
		"artifact_type": "posting",
		"artifact":      map[string]any{"posting_count": 3, "location_text": "渋谷区"},
		"shape_id":      "shape-1",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, achievementdomain.MessageAchieved, body["message"])
	assert.Equal(t, float64(150), body["xp_granted"])
	h.svc.AssertExpectations(t)
}

func TestAchieveMissionWithoutArtifactLeavesSubmissionNil(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.On("Achieve", mock.Anything, mock.MatchedBy(func(req achievementdomain.AchieveRequest) bool {
		return req.Submission == nil && req.ArtifactType == ""
	})).Return(achievementdomain.AchieveResult{Message: achievementdomain.MessageAchieved}, nil)

	rec := h.do(http.MethodPost, "/v1/missions/mission-1/achievements", "user-1", map[string]any{})
	assert.Equal(t, http.StatusOK, rec.Code)
	h.svc.AssertExpectations(t)
}

func TestAchieveMissionRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		body   any
		status int
		field  string
	}{
		{name: "missing user", body: map[string]any{}, status: http.StatusUnauthorized},
		{name: "unknown artifact type", userID: "user-1", body: map[string]any{"artifact_type": "VIDEO"}, status: http.StatusBadRequest},
		{name: "malformed artifact", userID: "user-1", body: map[string]any{"artifact_type": "LINK", "artifact": "oops"}, status: http.StatusUnprocessableEntity, field: "artifact"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			rec := h.do(http.MethodPost, "/v1/missions/mission-1/achievements", tt.userID, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			if tt.field != "" {
				assert.Equal(t, tt.field, body["field"])
			}
			h.svc.AssertNotCalled(t, "Achieve", mock.Anything, mock.Anything)
		})
	}
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{
			name:   "validation",
			err:    achievementdomain.Validation(achievementdomain.MessageArtifactTypeMismatch, achievementdomain.ErrArtifactTypeMismatch),
			status: http.StatusUnprocessableEntity,
			kind:   "validation",
		},
		{
			name:   "limit reached",
			err:    achievementdomain.Eligibility(achievementdomain.MessageLimitReached, achievementdomain.ErrAchievementLimitReached),
			status: http.StatusConflict,
			kind:   "eligibility",
		},
		{
			name:   "mission not found",
			err:    achievementdomain.Eligibility(achievementdomain.MessageMissionFetchFailed, achievementdomain.ErrMissionNotFound),
			status: http.StatusNotFound,
			kind:   "eligibility",
		},
		{
			name:   "storage",
			err:    achievementdomain.Storage(achievementdomain.MessageAchievementFailed, fmt.Errorf("disk full")),
			status: http.StatusInternalServerError,
			kind:   "storage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.svc.On("Achieve", mock.Anything, mock.Anything).Return(achievementdomain.AchieveResult{}, tt.err)

			rec := h.do(http.MethodPost, "/v1/missions/mission-1/achievements", "user-1", map[string]any{"artifact_type": "NONE"})
			require.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.err.Error(), body["error"])
			assert.Equal(t, tt.kind, body["kind"])
		})
	}
}

func TestCancelAchievementPassesRouteIDs(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.On("Cancel", mock.Anything, achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: "ach-1",
		MissionID:     "mission-1",
	}).Return(achievementdomain.CancelResult{Message: achievementdomain.MessageCancelled, XPRevoked: 100}, nil)

	rec := h.do(http.MethodDelete, "/v1/missions/mission-1/achievements/ach-1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(100), body["xp_revoked"])
	h.svc.AssertExpectations(t)
}

func TestCancelPartialIsServerError(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.On("Cancel", mock.Anything, mock.Anything).Return(
		achievementdomain.CancelResult{},
		achievementdomain.Partial(ledgerdomain.MessageLevelUpdateFailed, ledgerdomain.ErrLevelUpdateFailed),
	)

	rec := h.do(http.MethodDelete, "/v1/missions/mission-1/achievements/ach-1", "user-1", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "partial", body["kind"])
	assert.Contains(t, body["error"], achievementdomain.MessagePartialCancellation)
}

func TestGetMyLevel(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.snapshot = &ledgerdomain.UserLevel{UserID: "user-1", SeasonID: "season-1", XP: 100, Level: 3}
	h.ledger.rank = 2

	rec := h.do(http.MethodGet, "/v1/me/level", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(100), body["xp"])
	assert.Equal(t, float64(3), body["level"])
	assert.Equal(t, float64(2), body["rank"])
	assert.Equal(t, float64(65), body["xp_to_next_level"])
}

func TestGetMyLevelWithoutHistory(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/v1/me/level", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(0), body["xp"])
	assert.Equal(t, float64(1), body["level"])
	assert.Equal(t, float64(40), body["xp_to_next_level"])
}

func TestListMyTransactionsClampsLimit(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/v1/me/xp-transactions?limit=1000", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, h.ledger.limit)
	body := decode(t, rec)
	assert.Equal(t, []any{}, body["transactions"])

	rec = h.do(http.MethodGet, "/v1/me/xp-transactions?limit=abc", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{Rate: 0.001, Burst: 1})
	require.NoError(t, err)
	h := newHarness(t, limiter)
	h.svc.On("Achieve", mock.Anything, mock.Anything).
		Return(achievementdomain.AchieveResult{Message: achievementdomain.MessageAchieved}, nil).
		Once()

	rec := h.do(http.MethodPost, "/v1/missions/mission-1/achievements", "user-1", map[string]any{"artifact_type": "NONE"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/v1/missions/mission-1/achievements", "user-1", map[string]any{"artifact_type": "NONE"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	h.svc.AssertNumberOfCalls(t, "Achieve", 1)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
