// Package lock serializes work on a key across requests.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLocked     = errors.New("lock_held")
	ErrInvalidKey = errors.New("lock_key_empty")
)

// ReleaseFunc gives the lock back. Calling it more than once is a no-op.
type ReleaseFunc func(ctx context.Context)

// Locker hands out exclusive, expiring locks on string keys.
type Locker interface {
	// Acquire blocks until the key is free, the wait budget runs out (ErrLocked)
	// or ctx is done.
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
	// Backend names the implementation for metrics.
	Backend() string
}

type Options struct {
	// TTL bounds how long a crashed holder can keep the key.
	TTL time.Duration
	// Wait is the longest Acquire waits for a held key.
	Wait time.Duration
	// RetryInterval is the polling step while waiting.
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 3 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 50 * time.Millisecond
	}
	return o
}

// SubmissionKey is the key that serializes achievements of one user on one mission.
func SubmissionKey(userID, missionID string) string {
	return "actionboard:lock:achieve:" + userID + ":" + missionID
}
