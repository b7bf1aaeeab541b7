package migration

import (
	"context"

	"github.com/smallbiznis/actionboard/internal/clock"
	"github.com/smallbiznis/actionboard/internal/config"
	"github.com/smallbiznis/actionboard/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, c clock.Clock, log *zap.Logger) error {
		if !cfg.MigrateOnStart {
			log.Info("schema migrations disabled")
			return nil
		}

		ctx := context.Background()
		if err := Run(ctx, conn); err != nil {
			return err
		}

		if cfg.SeedSeasonSlug == "" {
			return nil
		}
		return seed.EnsureActiveSeason(ctx, conn, cfg.SeedSeasonSlug, c.Now())
	}),
)
