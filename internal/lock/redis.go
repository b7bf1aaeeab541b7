package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	opts   Options
}

func NewRedisLocker(client *redis.Client, opts Options) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		opts:   opts.withDefaults(),
	}
}

func (l *RedisLocker) Backend() string { return "redis" }

func (l *RedisLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock client not configured")
	}
	if strings.TrimSpace(key) == "" {
		return nil, ErrInvalidKey
	}

	deadline := time.Now().Add(l.opts.Wait)
	for {
		token, ok, err := l.tryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return l.releaser(key, token), nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.opts.RetryInterval):
		}
	}
}

func (l *RedisLocker) tryLock(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// releaser deletes the key only while it still holds token, so an expired
// lock taken over by another request is left alone.
func (l *RedisLocker) releaser(key, token string) ReleaseFunc {
	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			_ = l.script.Run(ctx, l.client, []string{key}, token).Err()
		})
	}
}

var _ Locker = (*RedisLocker)(nil)
