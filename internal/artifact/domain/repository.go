package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, artifact *MissionArtifact) error
	InsertGeolocation(ctx context.Context, db *gorm.DB, geo *ArtifactGeolocation) error
	InsertPostingActivity(ctx context.Context, db *gorm.DB, activity *PostingActivity) error
	InsertPosterActivity(ctx context.Context, db *gorm.DB, activity *PosterActivity) error
	FindByAchievementID(ctx context.Context, db *gorm.DB, achievementID string) (*MissionArtifact, error)

	// LinkSubmitted reports whether userID already submitted url as a LINK artifact for missionID.
	LinkSubmitted(ctx context.Context, db *gorm.DB, userID, missionID, url string) (bool, error)
	// BoardCompleted reports whether userID completed missionID on the given poster board.
	BoardCompleted(ctx context.Context, db *gorm.DB, userID, missionID, boardID string) (bool, error)
}
