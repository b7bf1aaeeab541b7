package domain

import (
	"context"

	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	missiondomain "github.com/smallbiznis/actionboard/internal/mission/domain"
)

type AchieveRequest struct {
	UserID              string
	MissionID           string
	ArtifactType        artifactdomain.ArtifactType
	Submission          artifactdomain.Submission
	ArtifactDescription string
	// ShapeID links a POSTING submission to a drawn map area.
	ShapeID string
	// BoardID identifies the poster board of a POSTER submission.
	BoardID string
}

type AchieveResult struct {
	Message   string                  `json:"message"`
	XPGranted int64                   `json:"xp_granted"`
	UserLevel *ledgerdomain.UserLevel `json:"user_level,omitempty"`
	// ArtifactID is empty for types that store no artifact.
	ArtifactID           string `json:"artifact_id,omitempty"`
	FirstBoardCompletion bool   `json:"first_board_completion,omitempty"`
}

type CancelRequest struct {
	UserID        string
	AchievementID string
	MissionID     string
}

type CancelResult struct {
	Message   string                  `json:"message"`
	XPRevoked int64                   `json:"xp_revoked"`
	UserLevel *ledgerdomain.UserLevel `json:"user_level,omitempty"`
}

// Service returns *Error for every expected failure.
type Service interface {
	Achieve(ctx context.Context, req AchieveRequest) (AchieveResult, error)
	Cancel(ctx context.Context, req CancelRequest) (CancelResult, error)
}

// ProviderDuplicateChecker asks an external provider whether the action behind
// a submission (a YouTube like or comment) was already credited.
type ProviderDuplicateChecker interface {
	AlreadyRecorded(ctx context.Context, userID string, mission missiondomain.Mission, submission artifactdomain.Submission) (bool, error)
}
