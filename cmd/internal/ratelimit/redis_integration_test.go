package ratelimit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisStore_FixedWindow(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("SUPREME_TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("SUPREME_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	prefix := "supreme:test:" + time.Now().Format("150405.000000") + ":"
	lim := NewFixedWindow(NewRedisStore(rdb, prefix), "chat", 3, 2*time.Second)
	now := time.Now()

	for i := 0; i < 3; i++ {
		d, err := lim.Allow(ctx, "user", now)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
	}
	d, err := lim.Allow(ctx, "user", now)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 || d.RetryAfter > 2*time.Second {
		t.Fatalf("expected refusal with retry in (0,2s], got %+v", d)
	}
}
