package service

import (
	"context"
	"strings"
	"testing"

	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	"github.com/smallbiznis/actionboard/internal/events"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	"github.com/smallbiznis/actionboard/internal/level"
	missiondomain "github.com/smallbiznis/actionboard/internal/mission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelRevokesMissionXP(t *testing.T) {
	f := setup(t)
	m := f.mission(t, missiondomain.Mission{Difficulty: 2, RequiredArtifactType: artifactdomain.ArtifactTypeLink})
	f.achieve(t, "user-1", m, artifactdomain.LinkSubmission{URL: "https://example.com/a"})
	achievementID := f.latestAchievementID(t, "user-1")

	res, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: achievementID,
		MissionID:     m.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, achievementdomain.MessageCancelled, res.Message)
	assert.Equal(t, int64(100), res.XPRevoked)
	require.NotNil(t, res.UserLevel)
	assert.Equal(t, int64(0), res.UserLevel.XP)
	assert.Equal(t, level.MinLevel, res.UserLevel.Level)

	assert.Equal(t, int64(0), f.count(t, "achievements"))
	assert.Equal(t, int64(0), f.count(t, "mission_artifacts"))

	var revoke ledgerdomain.XpTransaction
	require.NoError(t, f.db.Where("source_type = ?", ledgerdomain.SourceTypeMissionCancellation).First(&revoke).Error)
	assert.Equal(t, int64(-100), revoke.XpAmount)
	assert.Equal(t, "ミッション「テストミッション」の提出取り消しによる経験値減算", revoke.Description)
	require.NotNil(t, revoke.SourceID)
	assert.Equal(t, achievementID, *revoke.SourceID)

	// The same link can be submitted again once cancelled.
	f.achieve(t, "user-1", m, artifactdomain.LinkSubmission{URL: "https://example.com/a"})
}

func TestCancelRecomputesFeaturedXP(t *testing.T) {
	f := setup(t)
	m := f.mission(t, missiondomain.Mission{
		Difficulty:           3,
		IsFeatured:           true,
		RequiredArtifactType: artifactdomain.ArtifactTypeText,
	})
	res := f.achieve(t, "user-1", m, artifactdomain.TextSubmission{Text: "x"})
	require.Equal(t, int64(400), res.XPGranted)

	out, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: f.latestAchievementID(t, "user-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(400), out.XPRevoked)
}

func TestCancelReversesPostingBonus(t *testing.T) {
	f := setup(t)
	m := f.mission(t, missiondomain.Mission{
		Slug:                 "posting-magazine",
		IsFeatured:           true,
		RequiredArtifactType: artifactdomain.ArtifactTypePosting,
	})
	granted := f.achieve(t, "user-1", m, artifactdomain.PostingSubmission{PostingCount: 4, LocationText: "目黒区"})
	require.Equal(t, int64(400), granted.XPGranted)

	res, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: f.latestAchievementID(t, "user-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(400), res.XPRevoked)
	require.NotNil(t, res.UserLevel)
	assert.Equal(t, int64(0), res.UserLevel.XP)
	assert.Equal(t, int64(0), f.count(t, "posting_activities"))
}

func TestCancelReversesPosterBaseAndBonus(t *testing.T) {
	f := setup(t)
	m := f.mission(t, missiondomain.Mission{
		Slug:                 "put-up-poster-on-board",
		RequiredArtifactType: artifactdomain.ArtifactTypePoster,
	})
	f.achieve(t, "user-1", m, posterSubmission())

	res, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: f.latestAchievementID(t, "user-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(450), res.XPRevoked)
	assert.Equal(t, int64(0), f.count(t, "poster_activities"))
}

func TestCancelRejectsForeignAchievement(t *testing.T) {
	f := setup(t)
	m := f.mission(t, missiondomain.Mission{RequiredArtifactType: artifactdomain.ArtifactTypeText})
	other := f.mission(t, missiondomain.Mission{RequiredArtifactType: artifactdomain.ArtifactTypeText})
	f.achieve(t, "owner", m, artifactdomain.TextSubmission{Text: "x"})
	achievementID := f.latestAchievementID(t, "owner")

	tests := []struct {
		name string
		req  achievementdomain.CancelRequest
	}{
		{name: "other user", req: achievementdomain.CancelRequest{UserID: "intruder", AchievementID: achievementID}},
		{name: "other mission", req: achievementdomain.CancelRequest{UserID: "owner", AchievementID: achievementID, MissionID: other.ID}},
		{name: "unknown achievement", req: achievementdomain.CancelRequest{UserID: "owner", AchievementID: "missing"}},
		{name: "empty achievement", req: achievementdomain.CancelRequest{UserID: "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Cancel(context.Background(), tt.req)
			require.ErrorIs(t, err, achievementdomain.ErrAchievementNotFound)
			assert.Equal(t, achievementdomain.MessageAchievementNotFound, err.Error())
		})
	}

	_, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{AchievementID: achievementID})
	require.ErrorIs(t, err, achievementdomain.ErrUnauthenticated)

	assert.Equal(t, int64(1), f.count(t, "achievements"))
	assert.Equal(t, int64(1), f.count(t, "xp_transactions"))
}

func TestCancelPartialFailure(t *testing.T) {
	f := setup(t, withLedger(func(l ledgerdomain.Service) ledgerdomain.Service {
		return &failingLedger{Service: l, failRevoke: true}
	}))
	m := f.mission(t, missiondomain.Mission{RequiredArtifactType: artifactdomain.ArtifactTypeText})
	f.achieve(t, "user-1", m, artifactdomain.TextSubmission{Text: "x"})

	_, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: f.latestAchievementID(t, "user-1"),
	})
	require.ErrorIs(t, err, achievementdomain.ErrPartialCancellation)
	require.ErrorIs(t, err, ledgerdomain.ErrLevelUpdateFailed)
	assert.Equal(t, achievementdomain.KindPartial, achievementdomain.KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), achievementdomain.MessagePartialCancellation))
	assert.Contains(t, err.Error(), ledgerdomain.MessageLevelUpdateFailed)

	// The deletion is not rolled back.
	assert.Equal(t, int64(0), f.count(t, "achievements"))
}

func TestCancelWithNothingToRevoke(t *testing.T) {
	f := setup(t, withLedger(func(l ledgerdomain.Service) ledgerdomain.Service {
		return &failingLedger{Service: l, failBonus: true}
	}))
	m := f.mission(t, missiondomain.Mission{
		Slug:                 "posting-magazine",
		RequiredArtifactType: artifactdomain.ArtifactTypePosting,
	})
	f.achieve(t, "user-1", m, artifactdomain.PostingSubmission{PostingCount: 2, LocationText: "品川区"})

	res, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: f.latestAchievementID(t, "user-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.XPRevoked)
	assert.Equal(t, int64(0), f.count(t, "xp_transactions"))
}

func TestCancelWritesOutboxEvent(t *testing.T) {
	f := setup(t)
	m := f.mission(t, missiondomain.Mission{RequiredArtifactType: artifactdomain.ArtifactTypeText})
	f.achieve(t, "user-1", m, artifactdomain.TextSubmission{Text: "x"})
	achievementID := f.latestAchievementID(t, "user-1")

	_, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{UserID: "user-1", AchievementID: achievementID})
	require.NoError(t, err)

	var row events.OutboxEvent
	require.NoError(t, f.db.Where("event_type = ?", events.EventAchievementCancelled).First(&row).Error)
	assert.Equal(t, achievementID, row.AggregateID)
}

func TestLedgerMatchesSnapshotAfterMixedOperations(t *testing.T) {
	f := setup(t)
	text := f.mission(t, missiondomain.Mission{Difficulty: 4, RequiredArtifactType: artifactdomain.ArtifactTypeText})
	posting := f.mission(t, missiondomain.Mission{
		Slug:                 "posting-magazine",
		RequiredArtifactType: artifactdomain.ArtifactTypePosting,
	})
	poster := f.mission(t, missiondomain.Mission{
		Slug:                 "put-up-poster-on-board",
		Difficulty:           5,
		IsFeatured:           true,
		RequiredArtifactType: artifactdomain.ArtifactTypePoster,
	})

	f.achieve(t, "user-1", text, artifactdomain.TextSubmission{Text: "a"})
	f.achieve(t, "user-1", posting, artifactdomain.PostingSubmission{PostingCount: 7, LocationText: "新宿区"})
	f.achieve(t, "user-1", poster, posterSubmission())

	var posterAchievement string
	require.NoError(t, f.db.Raw(`SELECT id FROM achievements WHERE mission_id = ?`, poster.ID).Scan(&posterAchievement).Error)
	_, err := f.svc.Cancel(context.Background(), achievementdomain.CancelRequest{
		UserID:        "user-1",
		AchievementID: posterAchievement,
	})
	require.NoError(t, err)
	f.achieve(t, "user-1", text, artifactdomain.TextSubmission{Text: "b"})

	check, err := f.ledger.Verify(context.Background(), "user-1", f.season.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)
	assert.Equal(t, check.LedgerSum, check.CachedXP)
	assert.Equal(t, level.CalculateLevel(check.CachedXP), check.CachedLevel)
}
