package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, mission *Mission) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Mission, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Mission, error)
}

var ErrNotFound = errors.New("mission_not_found")
