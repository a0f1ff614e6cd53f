package realtime

import (
	"sync"
	"time"
)

// DefaultReconnectDelay is the fixed wait between a channel failure and the next attempt.
const DefaultReconnectDelay = 3000 * time.Millisecond

// Reconnector owns at most one pending reconnect timer. Scheduling cancels whatever was
// pending, so repeated failures inside the delay produce a single attempt.
type Reconnector struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	pending Timer
	seq     uint64
}

// NewReconnector returns a Reconnector; delay <= 0 means DefaultReconnectDelay.
func NewReconnector(clock Clock, delay time.Duration) *Reconnector {
	if clock == nil {
		clock = SystemClock{}
	}
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Reconnector{clock: clock, delay: delay}
}

// Delay returns the configured wait.
func (r *Reconnector) Delay() time.Duration { return r.delay }

// Schedule replaces any pending attempt with fn after the delay.
func (r *Reconnector) Schedule(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		r.pending.Stop()
	}
	r.seq++
	seq := r.seq
	r.pending = r.clock.AfterFunc(r.delay, func() {
		r.mu.Lock()
		if seq != r.seq {
			// Replaced or cancelled after the timer already fired.
			r.mu.Unlock()
			return
		}
		r.pending = nil
		r.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending attempt, if any. It reports whether one was pending.
func (r *Reconnector) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if r.pending == nil {
		return false
	}
	r.pending.Stop()
	r.pending = nil
	return true
}

// Pending reports whether an attempt is scheduled.
func (r *Reconnector) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}
