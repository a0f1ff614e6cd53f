// Package ids mints the sortable identifiers used for visitors and wire envelopes.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Monotonic entropy: ids minted in the same millisecond still sort by issue order.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a 26 char ULID for now (the current UTC time when zero).
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	mu.Unlock()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Prefixed returns prefix_<lowercase ulid>, e.g. visitor_01j...
func Prefixed(prefix string, now time.Time) (string, error) {
	id, err := NewULID(now)
	if err != nil {
		return "", err
	}
	return prefix + "_" + strings.ToLower(id), nil
}
