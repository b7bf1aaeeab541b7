package repository

import (
	"context"

	"github.com/smallbiznis/actionboard/internal/season/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, season *domain.Season) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO seasons (id, slug, name, is_active, start_date, end_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		season.ID,
		season.Slug,
		season.Name,
		season.IsActive,
		season.StartDate,
		season.EndDate,
		season.CreatedAt,
	).Error
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) (*domain.Season, error) {
	var seasons []domain.Season
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, is_active, start_date, end_date, created_at
		 FROM seasons WHERE is_active = ? LIMIT 2`,
		true,
	).Scan(&seasons).Error
	if err != nil {
		return nil, err
	}
	switch len(seasons) {
	case 0:
		return nil, nil
	case 1:
		return &seasons[0], nil
	default:
		return nil, domain.ErrMultipleActiveSeasons
	}
}
