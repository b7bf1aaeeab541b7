package service

import (
	"context"
	"strings"

	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	"github.com/smallbiznis/actionboard/internal/config"
	missiondomain "github.com/smallbiznis/actionboard/internal/mission/domain"
	"go.uber.org/zap"
)

// checkEligibility enforces the per-mission cap and the duplicate rules.
// Only LINK submissions are deduplicated locally; YouTube actions ask the provider.
func (s *Service) checkEligibility(ctx context.Context, userID string, mission missiondomain.Mission, kind artifactdomain.ArtifactType, sub artifactdomain.Submission) error {
	if mission.MaxAchievementCount != nil {
		count, err := s.achievements.CountByUserMission(ctx, s.db, userID, mission.ID)
		if err != nil {
			return achievementdomain.Storage(achievementdomain.MessageCountFailed, err)
		}
		if mission.CapReached(count) {
			return achievementdomain.Eligibility(achievementdomain.MessageLimitReached, achievementdomain.ErrAchievementLimitReached)
		}
	}

	switch kind {
	case artifactdomain.ArtifactTypeLink:
		link, _ := sub.(artifactdomain.LinkSubmission)
		exists, err := s.artifacts.LinkSubmitted(ctx, s.db, userID, mission.ID, link.URL)
		if err != nil {
			return achievementdomain.Storage(achievementdomain.MessageDuplicateCheckFailed, err)
		}
		if exists {
			return achievementdomain.Eligibility(achievementdomain.MessageDuplicateLink, achievementdomain.ErrDuplicateLink)
		}
	case artifactdomain.ArtifactTypeYouTube, artifactdomain.ArtifactTypeYouTubeComment:
		if s.provider == nil {
			return nil
		}
		recorded, err := s.provider.AlreadyRecorded(ctx, userID, mission, sub)
		if err != nil {
			return achievementdomain.Storage(achievementdomain.MessageDuplicateCheckFailed, err)
		}
		if recorded {
			return achievementdomain.Eligibility(achievementdomain.MessageDuplicateProvider, achievementdomain.ErrDuplicateProvider)
		}
	}
	return nil
}

// boardCompletion reports whether a poster submission is the user's first on
// its board for the board mission, and whether the board was already done.
// Lookup errors cost only the flag.
func (s *Service) boardCompletion(ctx context.Context, log *zap.Logger, req achievementdomain.AchieveRequest, mission missiondomain.Mission, rules config.XPRules) (first, repeat bool) {
	boardID := strings.TrimSpace(req.BoardID)
	if boardID == "" || mission.RequiredArtifactType != artifactdomain.ArtifactTypePoster || !rules.IsPosterBoardMission(mission.Slug) {
		return false, false
	}
	done, err := s.artifacts.BoardCompleted(ctx, s.db, req.UserID, mission.ID, boardID)
	if err != nil {
		log.Warn("board completion check failed", zap.String("board_id", boardID), zap.Error(err))
		s.obsMetrics.RecordSoftFailure(ctx, "board_completion_check")
		return false, false
	}
	return !done, done
}
