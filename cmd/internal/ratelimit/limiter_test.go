package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFixedWindow_ThirtyPerMinute(t *testing.T) {
	ctx := context.Background()
	lim := NewFixedWindow(NewMemoryStore(), "chat", 30, 60*time.Second)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 30; i++ {
		d, err := lim.Allow(ctx, "user-1", start.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request #%d should be allowed", i)
		}
		if d.Remaining != int64(30-i) {
			t.Fatalf("request #%d: remaining=%d", i, d.Remaining)
		}
	}

	d, err := lim.Allow(ctx, "user-1", start.Add(31*time.Second))
	if err != nil {
		t.Fatalf("Allow #31: %v", err)
	}
	if d.Allowed {
		t.Fatalf("request #31 inside the window must be refused")
	}
	if d.RetryAfter != 30*time.Second {
		t.Fatalf("expected retry after 30s, got %v", d.RetryAfter)
	}

	// Other identities have their own window.
	if d, _ := lim.Allow(ctx, "user-2", start.Add(31*time.Second)); !d.Allowed {
		t.Fatalf("independent key should be allowed")
	}
}

func TestFixedWindow_ResetsAfterWindow(t *testing.T) {
	ctx := context.Background()
	lim := NewFixedWindow(NewMemoryStore(), "leads", 2, 10*time.Minute)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if d, _ := lim.Allow(ctx, "203.0.113.7", start); !d.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
	}
	if d, _ := lim.Allow(ctx, "203.0.113.7", start.Add(9*time.Minute)); d.Allowed {
		t.Fatalf("third hit inside window should be refused")
	}
	// Window is fixed from the first hit, not sliding.
	if d, _ := lim.Allow(ctx, "203.0.113.7", start.Add(10*time.Minute)); !d.Allowed {
		t.Fatalf("first hit of the next window should be allowed")
	}
}

func TestFixedWindow_ScopesShareStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := NewFixedWindow(store, "a", 1, time.Minute)
	b := NewFixedWindow(store, "b", 1, time.Minute)
	now := time.Now()

	if d, _ := a.Allow(ctx, "k", now); !d.Allowed {
		t.Fatalf("scope a first hit should pass")
	}
	if d, _ := b.Allow(ctx, "k", now); !d.Allowed {
		t.Fatalf("scope b must not see scope a hits")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 windows, got %d", store.Len())
	}
}

func TestMemoryStore_SweepsExpiredWindows(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, k := range []string{"a", "b", "c"} {
		if _, _, err := s.Incr(ctx, k, time.Second, now); err != nil {
			t.Fatalf("Incr: %v", err)
		}
	}
	if _, _, err := s.Incr(ctx, "d", time.Second, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected expired windows swept, have %d", s.Len())
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration, time.Time) (int64, time.Time, error) {
	return 0, time.Time{}, ErrStoreUnavailable
}

func TestFixedWindow_StoreError(t *testing.T) {
	lim := NewFixedWindow(failingStore{}, "chat", 30, time.Minute)
	_, err := lim.Allow(context.Background(), "u", time.Now())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
