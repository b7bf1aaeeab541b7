package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/actionboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(NewLimiter),
)

// NewLimiter returns nil when SUBMIT_RATE_PER_SEC is zero, which disables throttling.
func NewLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (Limiter, error) {
	limits := Config{Rate: cfg.SubmitRatePerSec, Burst: cfg.SubmitBurst}
	if limits.Rate <= 0 {
		log.Info("submission rate limit disabled")
		return nil, nil
	}
	if client != nil {
		return NewTokenBucket(client, limits)
	}
	return NewLocalLimiter(limits)
}
