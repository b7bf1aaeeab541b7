package main

import (
	"github.com/smallbiznis/actionboard/internal/clock"
	"github.com/smallbiznis/actionboard/internal/config"
	"github.com/smallbiznis/actionboard/internal/migration"
	"github.com/smallbiznis/actionboard/internal/observability"
	"github.com/smallbiznis/actionboard/internal/server"
	"github.com/smallbiznis/actionboard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,

		// Schema first, then the domains behind the HTTP surface.
		migration.Module,
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}
