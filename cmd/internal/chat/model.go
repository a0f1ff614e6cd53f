package chat

import "time"

// Message is one chat log row. Rows are never updated after insert.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage is the insert input; ID and CreatedAt are assigned by the store.
type NewMessage struct {
	UserID   string
	UserName string
	Message  string
	Now      time.Time
}
