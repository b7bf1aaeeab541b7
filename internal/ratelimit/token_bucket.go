package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

const keyPrefix = "actionboard:ratelimit:"

// TokenBucket keeps bucket state in redis so every replica shares one budget per key.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
	cfg    Config
}

func NewTokenBucket(client *redis.Client, cfg Config) (*TokenBucket, error) {
	if client == nil {
		return nil, errors.New("rate limiter: nil redis client")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		cfg:    cfg,
	}, nil
}

func (t *TokenBucket) Allow(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}

	ttl := bucketTTL(t.cfg)
	res, err := t.script.Run(ctx, t.client,
		[]string{keyPrefix + key},
		t.cfg.Rate,
		t.cfg.Burst,
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 2 {
		return Result{}, errors.New("rate limiter: invalid script response")
	}

	allowed := toInt(res[0]) == 1
	remaining := toFloat(res[1])

	out := Result{
		Allowed:   allowed,
		Limit:     t.cfg.Burst,
		Remaining: int(math.Floor(remaining)),
	}
	if !allowed {
		out.RetryAfter = retryAfter(remaining, t.cfg.Rate)
	}
	return out, nil
}

// bucketTTL keeps idle buckets around for twice the full refill time.
func bucketTTL(cfg Config) time.Duration {
	refill := time.Duration(float64(cfg.Burst) / cfg.Rate * float64(time.Second))
	ttl := 2 * refill
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
