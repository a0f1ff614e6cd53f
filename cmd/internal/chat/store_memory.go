package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memMaxMessages = 10_000

// InMemoryStore is a dev-only fallback when DB is not configured.
type InMemoryStore struct {
	mu   sync.Mutex
	msgs []Message // ordered by (CreatedAt, ID)
}

// NewInMemoryStore constructs an in-memory MessageStore implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{msgs: make([]Message, 0, 256)}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Insert(ctx context.Context, in NewMessage) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	m := Message{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		UserName:  in.UserName,
		Message:   in.Message,
		CreatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.msgs), func(i int) bool { return lessMessage(m, s.msgs[i]) })
	s.msgs = append(s.msgs, Message{})
	copy(s.msgs[i+1:], s.msgs[i:])
	s.msgs[i] = m

	// Bound memory to avoid unbounded growth in dev.
	if len(s.msgs) > memMaxMessages {
		s.msgs = append([]Message(nil), s.msgs[len(s.msgs)-memMaxMessages:]...)
	}
	return m, nil
}

func (s *InMemoryStore) Recent(ctx context.Context, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.msgs) - limit
	if start < 0 {
		start = 0
	}
	return append([]Message(nil), s.msgs[start:]...), nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.msgs {
		if m.ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return m, nil
		}
	}
	return Message{}, OpError{Op: "chat.Delete", Kind: ErrNotFound}
}

func lessMessage(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
