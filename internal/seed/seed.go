package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	seasondomain "github.com/smallbiznis/actionboard/internal/season/domain"
	seasonrepo "github.com/smallbiznis/actionboard/internal/season/repository"
	"gorm.io/gorm"
)

// EnsureActiveSeason opens a season named after seasonSlug when none is active.
// An existing active season is left untouched.
func EnsureActiveSeason(ctx context.Context, db *gorm.DB, seasonSlug string, now time.Time) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	seasonSlug = slug.Make(seasonSlug)
	if seasonSlug == "" {
		return errors.New("seed season slug is required")
	}

	repo := seasonrepo.Provide()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := repo.FindActive(ctx, tx)
		if err != nil {
			return err
		}
		if active != nil {
			return nil
		}

		var existing int64
		if err := tx.Raw(`SELECT COUNT(1) FROM seasons WHERE slug = ?`, seasonSlug).Scan(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return tx.Exec(`UPDATE seasons SET is_active = ? WHERE slug = ?`, true, seasonSlug).Error
		}

		return repo.Insert(ctx, tx, &seasondomain.Season{
			ID:        uuid.NewString(),
			Slug:      seasonSlug,
			Name:      seasonName(seasonSlug),
			IsActive:  true,
			StartDate: now,
			CreatedAt: now,
		})
	})
}

func seasonName(s string) string {
	words := strings.Split(s, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
