package leads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists leads.
type Store interface {
	Insert(ctx context.Context, l Lead) (Lead, error)
	// Recent returns the newest limit leads, newest first.
	Recent(ctx context.Context, limit int) ([]Lead, error)
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
	memMaxLeads      = 5_000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// InMemoryStore is a dev-only fallback when DB is not configured.
type InMemoryStore struct {
	mu    sync.Mutex
	leads []Lead // insertion order
}

// NewInMemoryStore constructs an in-memory Store.
func NewInMemoryStore() *InMemoryStore { return &InMemoryStore{} }

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Insert(ctx context.Context, l Lead) (Lead, error) {
	if err := ctx.Err(); err != nil {
		return Lead{}, err
	}
	l.ID = uuid.NewString()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, l)
	if len(s.leads) > memMaxLeads {
		s.leads = append([]Lead(nil), s.leads[len(s.leads)-memMaxLeads:]...)
	}
	return l, nil
}

func (s *InMemoryStore) Recent(ctx context.Context, limit int) ([]Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Lead, 0, limit)
	for i := len(s.leads) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.leads[i])
	}
	return out, nil
}
