package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is wrapped by stores when the backing service cannot be reached.
var ErrStoreUnavailable = errors.New("ratelimit: store unavailable")

// Store counts hits per key inside a fixed window.
type Store interface {
	// Incr records one hit for key and returns the hit count of the current window and the
	// instant the window resets. A new window starts when none is active.
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
}
