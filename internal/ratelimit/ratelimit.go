package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyKey      = errors.New("rate_limit_key_empty")
	ErrInvalidConfig = errors.New("rate_limit_invalid_config")
)

// Config is a token bucket refilled at Rate tokens per second up to Burst.
type Config struct {
	Rate  float64
	Burst int
}

func (c Config) validate() error {
	if c.Rate <= 0 || c.Burst <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter throttles submissions per key, typically the user id.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// retryAfter is how long the bucket needs to refill one token.
func retryAfter(remaining, rate float64) time.Duration {
	needed := 1.0 - remaining
	if needed <= 0 || rate <= 0 {
		return 0
	}
	return time.Duration(needed / rate * float64(time.Second))
}
