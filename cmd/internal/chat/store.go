package chat

import "context"

// MessageStore persists the chat log.
//
// Requirements:
//   - Insert assigns a unique id and the creation timestamp
//   - Recent returns the newest limit rows ordered by (created_at, id) ASC
//   - Delete returns the removed row, or ErrNotFound
type MessageStore interface {
	Insert(ctx context.Context, in NewMessage) (Message, error)
	Recent(ctx context.Context, limit int) ([]Message, error)
	Delete(ctx context.Context, id string) (Message, error)
	Close() error
}

const (
	// DefaultHistoryLimit is the history page size used by the chat widget.
	DefaultHistoryLimit = 100
	maxHistoryLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}
