package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the counter and arms the expiry only when the window opens, so
// later hits never extend it.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {n, ttl}
`)

// RedisStore shares windows across instances through Redis counters.
type RedisStore struct {
	rdb    redis.Scripter
	prefix string
}

// NewRedisStore wraps a go-redis client. Keys are namespaced with prefix.
func NewRedisStore(rdb redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "supreme:rl:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Incr(ctx context.Context, key string, win time.Duration, now time.Time) (int64, time.Time, error) {
	res, err := incrScript.Run(ctx, s.rdb, []string{s.prefix + key}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		// Key without expiry (or already gone): treat as a full window.
		ttl = win
	}
	return res[0], now.Add(ttl), nil
}
