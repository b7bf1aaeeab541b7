package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, achievement *Achievement) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Achievement, error)
	CountByUserMission(ctx context.Context, db *gorm.DB, userID, missionID string) (int64, error)
	// Delete removes the achievement; artifacts and side records cascade.
	Delete(ctx context.Context, db *gorm.DB, id string) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]Achievement, error)
}
