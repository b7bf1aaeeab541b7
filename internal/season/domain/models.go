package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Season bounds the period XP and levels are tracked for.
type Season struct {
	ID        string     `gorm:"type:text;primaryKey" json:"id"`
	Slug      string     `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Name      string     `gorm:"type:text;not null" json:"name"`
	IsActive  bool       `gorm:"not null;default:false" json:"is_active"`
	StartDate time.Time  `gorm:"not null" json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Season) TableName() string { return "seasons" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, season *Season) error
	// FindActive returns nil when no season is flagged active.
	FindActive(ctx context.Context, db *gorm.DB) (*Season, error)
}

var (
	ErrNoActiveSeason        = errors.New("no_active_season")
	ErrMultipleActiveSeasons = errors.New("multiple_active_seasons")
)
