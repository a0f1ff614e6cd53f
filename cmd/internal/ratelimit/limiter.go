package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
}

// FixedWindow admits at most Limit hits per key per Window.
type FixedWindow struct {
	store  Store
	limit  int64
	window time.Duration
	scope  string
}

// NewFixedWindow builds a limiter. scope namespaces keys so limiters can share a store.
func NewFixedWindow(store Store, scope string, limit int, window time.Duration) *FixedWindow {
	if store == nil {
		store = NewMemoryStore()
	}
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{store: store, limit: int64(limit), window: window, scope: scope}
}

// Limit returns the configured hits per window.
func (l *FixedWindow) Limit() int { return int(l.limit) }

// Window returns the configured window length.
func (l *FixedWindow) Window() time.Duration { return l.window }

// Allow records a hit for key. On store failure the error is returned with a zero Decision.
func (l *FixedWindow) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	count, resetAt, err := l.store.Incr(ctx, l.scope+":"+key, l.window, now)
	if err != nil {
		return Decision{}, err
	}
	if count > l.limit {
		retry := resetAt.Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Count: count, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Count: count, Remaining: l.limit - count}, nil
}
