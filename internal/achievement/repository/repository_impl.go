package repository

import (
	"context"

	"github.com/smallbiznis/actionboard/internal/achievement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, achievement *domain.Achievement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO achievements (id, user_id, mission_id, season_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		achievement.ID,
		achievement.UserID,
		achievement.MissionID,
		achievement.SeasonID,
		achievement.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Achievement, error) {
	var achievement domain.Achievement
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, mission_id, season_id, created_at FROM achievements WHERE id = ?`,
		id,
	).Scan(&achievement).Error
	if err != nil {
		return nil, err
	}
	if achievement.ID == "" {
		return nil, nil
	}
	return &achievement, nil
}

func (r *repo) CountByUserMission(ctx context.Context, db *gorm.DB, userID, missionID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM achievements WHERE user_id = ? AND mission_id = ?`,
		userID,
		missionID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Exec(`DELETE FROM achievements WHERE id = ?`, id).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Achievement, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []domain.Achievement
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, mission_id, season_id, created_at
		 FROM achievements WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
