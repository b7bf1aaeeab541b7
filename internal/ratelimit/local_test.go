package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiterExhaustsBurst(t *testing.T) {
	l, err := NewLocalLimiter(Config{Rate: 1, Burst: 2})
	require.NoError(t, err)
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Second)

	// Keys are independent.
	res, err = l.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	now = now.Add(time.Second)
	res, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiterRejectsBadInput(t *testing.T) {
	_, err := NewLocalLimiter(Config{Rate: 0, Burst: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	l, err := NewLocalLimiter(Config{Rate: 1, Burst: 1})
	require.NoError(t, err)
	_, err = l.Allow(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = NewTokenBucket(nil, Config{Rate: 1, Burst: 1})
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(Config{Rate: 1, Burst: 10}))
	assert.Equal(t, time.Second, bucketTTL(Config{Rate: 100, Burst: 1}))
}
