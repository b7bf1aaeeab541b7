package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one x/time/rate bucket per key in process memory.
type LocalLimiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewLocalLimiter(cfg Config) (*LocalLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &LocalLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}, nil
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}

	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	now := l.now()
	allowed := bucket.AllowN(now, 1)
	remaining := bucket.TokensAt(now)

	out := Result{
		Allowed:   allowed,
		Limit:     l.cfg.Burst,
		Remaining: int(math.Max(0, math.Floor(remaining))),
	}
	if !allowed {
		out.RetryAfter = retryAfter(remaining, l.cfg.Rate)
	}
	return out, nil
}
