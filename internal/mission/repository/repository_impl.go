package repository

import (
	"context"

	"github.com/smallbiznis/actionboard/internal/mission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, mission *domain.Mission) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO missions (id, slug, title, difficulty, required_artifact_type, max_achievement_count, is_featured, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mission.ID,
		mission.Slug,
		mission.Title,
		mission.Difficulty,
		string(mission.RequiredArtifactType),
		mission.MaxAchievementCount,
		mission.IsFeatured,
		mission.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Mission, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Mission, error) {
	return r.findOne(ctx, db, "slug = ?", slug)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Mission, error) {
	var mission domain.Mission
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, title, difficulty, required_artifact_type, max_achievement_count, is_featured, created_at
		 FROM missions WHERE `+where,
		arg,
	).Scan(&mission).Error
	if err != nil {
		return nil, err
	}
	if mission.ID == "" {
		return nil, nil
	}
	return &mission, nil
}
