package lock

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LocalLocker is an in-process keyed mutex for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	opts  Options
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{
		slots: make(map[string]*slot),
		opts:  opts.withDefaults(),
	}
}

func (l *LocalLocker) Backend() string { return "local" }

func (l *LocalLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrInvalidKey
	}

	s := l.ref(key)
	timer := time.NewTimer(l.opts.Wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		l.unref(key)
		return nil, ErrLocked
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) {
		once.Do(func() {
			<-s.ch
			l.unref(key)
		})
	}, nil
}

func (l *LocalLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

var _ Locker = (*LocalLocker)(nil)
