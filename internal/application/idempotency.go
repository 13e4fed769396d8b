package application

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore handles short-lived deduplication of sync triggers.
type IdempotencyStore interface {
	// TryReserve returns true if key was absent and is now reserved.
	// Returns false if the key already exists (duplicate).
	TryReserve(ctx context.Context, key string) (bool, error)
}

// NoopIdempotency always succeeds; useful for tests/dev when Redis is disabled.
type NoopIdempotency struct{}

func (NoopIdempotency) TryReserve(context.Context, string) (bool, error) { return true, nil }

// RunLock keeps sync runs of one kind from overlapping.
type RunLock interface {
	// Acquire returns ok=false when the lock is held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// LocalRunLock is an in-process RunLock for single-replica deployments.
type LocalRunLock struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func (l *LocalRunLock) Acquire(_ context.Context, name string, ttl time.Duration) (func(context.Context), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]time.Time{}
	}
	now := time.Now()
	if exp, ok := l.held[name]; ok && now.Before(exp) {
		return nil, false, nil
	}
	exp := now.Add(ttl)
	l.held[name] = exp
	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[name].Equal(exp) {
			delete(l.held, name)
		}
	}, true, nil
}
