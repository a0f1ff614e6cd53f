package authapi

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// failureLog remembers recent failure timestamps per key (client IP).
type failureLog struct {
	mu      sync.Mutex
	horizon time.Duration
	byKey   map[string][]time.Time
}

func newFailureLog(horizon time.Duration) *failureLog {
	return &failureLog{horizon: horizon, byKey: make(map[string][]time.Time)}
}

func (l *failureLog) record(key string, now time.Time) {
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byKey[key] = append(pruneBefore(l.byKey[key], now.Add(-l.horizon)), now)
}

func (l *failureLog) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byKey, key)
}

// recent returns failures inside the horizon, most recent first.
func (l *failureLog) recent(key string, now time.Time) []time.Time {
	if key == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := pruneBefore(l.byKey[key], now.Add(-l.horizon))
	if len(kept) == 0 {
		delete(l.byKey, key)
		return nil
	}
	l.byKey[key] = kept

	out := make([]time.Time, len(kept))
	copy(out, kept)
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

func pruneBefore(in []time.Time, cut time.Time) []time.Time {
	out := in[:0]
	for _, t := range in {
		if !t.Before(cut) {
			out = append(out, t)
		}
	}
	return out
}

// evaluateWindowThrottle blocks when max or more failures fall inside window.
// failures must be sorted most recent first.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	n := 0
	for _, f := range failures {
		if f.Before(cut) {
			continue
		}
		n++
	}
	if n < max {
		return false, 0
	}

	// The window frees up when the max-th most recent failure ages out.
	inWindow := make([]time.Time, 0, n)
	for _, f := range failures {
		if !f.Before(cut) {
			inWindow = append(inWindow, f)
		}
	}
	oldest := inWindow[max-1]
	return true, oldest.Add(window).Sub(now)
}

// evaluateProgressiveLockout applies the first tier (most severe first) whose threshold is
// reached and whose lockout, counted from the latest failure, has not elapsed.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	latest := failures[0]
	for _, tier := range tiers {
		if tier.Threshold <= 0 || tier.Duration <= 0 || len(failures) < tier.Threshold {
			continue
		}
		until := latest.Add(tier.Duration)
		if now.Before(until) {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

func (h *Handler) checkLoginThrottle(key string, now time.Time) (bool, time.Duration) {
	failures := h.loginFailures.recent(key, now)
	if blocked, retry := evaluateWindowThrottle(now, failures, h.cfg.LoginIPMax, h.cfg.LoginIPWindow); blocked {
		return true, retry
	}
	return evaluateProgressiveLockout(now, failures, h.cfg.lockoutTiers())
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter / time.Second)
		if retryAfter%time.Second != 0 {
			secs++
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	httpx.WriteError(w, http.StatusTooManyRequests, "too many attempts, please try again later")
}
