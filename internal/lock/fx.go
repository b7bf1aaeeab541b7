package lock

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/actionboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
)

// NewRedisClient dials REDIS_ADDR. It returns a nil client when redis is not configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// NewLocker uses redis when a client is available and an in-process locker otherwise.
func NewLocker(cfg config.Config, client *redis.Client, log *zap.Logger) Locker {
	opts := Options{TTL: cfg.LockTTL}
	if client == nil {
		log.Info("submission lock uses in-process mutex")
		return NewLocalLocker(opts)
	}
	log.Info("submission lock uses redis", zap.String("addr", cfg.RedisAddr))
	return NewRedisLocker(client, opts)
}
