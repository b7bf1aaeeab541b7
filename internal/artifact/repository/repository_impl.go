package repository

import (
	"context"

	"github.com/smallbiznis/actionboard/internal/artifact/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, artifact *domain.MissionArtifact) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO mission_artifacts (
			id, achievement_id, user_id, artifact_type, link_url, text_content, image_storage_path, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID,
		artifact.AchievementID,
		artifact.UserID,
		string(artifact.ArtifactType),
		artifact.LinkURL,
		artifact.TextContent,
		artifact.ImageStoragePath,
		artifact.Description,
		artifact.CreatedAt,
	).Error
}

func (r *repo) InsertGeolocation(ctx context.Context, db *gorm.DB, geo *domain.ArtifactGeolocation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO mission_artifact_geolocations (id, mission_artifact_id, lat, lon, accuracy, altitude)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		geo.ID,
		geo.MissionArtifactID,
		geo.Lat,
		geo.Lon,
		geo.Accuracy,
		geo.Altitude,
	).Error
}

func (r *repo) InsertPostingActivity(ctx context.Context, db *gorm.DB, activity *domain.PostingActivity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO posting_activities (id, mission_artifact_id, posting_count, location_text, shape_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.MissionArtifactID,
		activity.PostingCount,
		activity.LocationText,
		activity.ShapeID,
		activity.CreatedAt,
	).Error
}

// InsertPosterActivity goes through gorm so the lat/long columns are quoted per dialect.
func (r *repo) InsertPosterActivity(ctx context.Context, db *gorm.DB, activity *domain.PosterActivity) error {
	return db.WithContext(ctx).Create(activity).Error
}

func (r *repo) FindByAchievementID(ctx context.Context, db *gorm.DB, achievementID string) (*domain.MissionArtifact, error) {
	var artifact domain.MissionArtifact
	err := db.WithContext(ctx).Raw(
		`SELECT id, achievement_id, user_id, artifact_type, link_url, text_content, image_storage_path, description, created_at
		 FROM mission_artifacts WHERE achievement_id = ?`,
		achievementID,
	).Scan(&artifact).Error
	if err != nil {
		return nil, err
	}
	if artifact.ID == "" {
		return nil, nil
	}
	return &artifact, nil
}

func (r *repo) LinkSubmitted(ctx context.Context, db *gorm.DB, userID, missionID, url string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM mission_artifacts ma
		 JOIN achievements a ON a.id = ma.achievement_id
		 WHERE ma.user_id = ? AND ma.artifact_type = ? AND ma.link_url = ? AND a.mission_id = ?`,
		userID,
		string(domain.ArtifactTypeLink),
		url,
		missionID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) BoardCompleted(ctx context.Context, db *gorm.DB, userID, missionID, boardID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM poster_activities pa
		 JOIN mission_artifacts ma ON ma.id = pa.mission_artifact_id
		 JOIN achievements a ON a.id = ma.achievement_id
		 WHERE pa.board_id = ? AND a.user_id = ? AND a.mission_id = ?`,
		boardID,
		userID,
		missionID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
