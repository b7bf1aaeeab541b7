package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/actionboard/internal/achievement"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	"github.com/smallbiznis/actionboard/internal/artifact"
	"github.com/smallbiznis/actionboard/internal/config"
	"github.com/smallbiznis/actionboard/internal/events"
	"github.com/smallbiznis/actionboard/internal/ledger"
	ledgerdomain "github.com/smallbiznis/actionboard/internal/ledger/domain"
	"github.com/smallbiznis/actionboard/internal/lock"
	"github.com/smallbiznis/actionboard/internal/mission"
	"github.com/smallbiznis/actionboard/internal/observability"
	obsmiddleware "github.com/smallbiznis/actionboard/internal/observability/logger"
	obstracing "github.com/smallbiznis/actionboard/internal/observability/tracing"
	"github.com/smallbiznis/actionboard/internal/ratelimit"
	"github.com/smallbiznis/actionboard/internal/season"
	seasondomain "github.com/smallbiznis/actionboard/internal/season/domain"
	"github.com/smallbiznis/actionboard/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	telemetry.Module,
	events.Module,
	lock.Module,
	ratelimit.Module,
	mission.Module,
	season.Module,
	artifact.Module,
	ledger.Module,
	achievement.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, metrics *telemetry.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		UserIDHeader:      obsmiddleware.UserIDHeader,
		MissionAttributes: obsCfg.TraceMissionAttributes,
	}))
	r.Use(APIMetrics(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	db             *gorm.DB
	log            *zap.Logger
	achievementSvc achievementdomain.Service
	ledgerSvc      ledgerdomain.Service
	seasons        seasondomain.Repository
	submitLimiter  ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	DB             *gorm.DB
	Log            *zap.Logger
	AchievementSvc achievementdomain.Service
	LedgerSvc      ledgerdomain.Service
	Seasons        seasondomain.Repository
	SubmitLimiter  ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:         p.Gin,
		db:             p.DB,
		log:            p.Log.Named("http.server"),
		achievementSvc: p.AchievementSvc,
		ledgerSvc:      p.LedgerSvc,
		seasons:        p.Seasons,
		submitLimiter:  p.SubmitLimiter,
	}

	s.engine.GET("/healthz", s.Health)
	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", UserRequired())

	missions := v1.Group("/missions/:missionID/achievements")
	{
		missions.POST("", s.SubmissionRateLimit(), s.AchieveMission)
		missions.DELETE("/:achievementID", s.CancelAchievement)
	}

	me := v1.Group("/me")
	{
		me.GET("/level", s.GetMyLevel)
		me.GET("/xp-transactions", s.ListMyTransactions)
	}
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
