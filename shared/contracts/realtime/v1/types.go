package v1

import "encoding/json"

// Event types carried by change envelopes.
const (
	EventInsert = "INSERT"
	EventDelete = "DELETE"
)

// Channel status values carried by status envelopes.
const (
	StatusSubscribed   = "SUBSCRIBED"
	StatusClosed       = "CLOSED"
	StatusChannelError = "CHANNEL_ERROR"
)

// Table names exposed through the change channel.
const (
	TableMessages = "messages"
	TableLeads    = "leads"
)

// ---- Payloads ----

// SubscribePayload asks the server to stream changes for Table.
// Events empty means every supported event type.
type SubscribePayload struct {
	Channel string   `json:"channel"`
	Table   string   `json:"table"`
	Events  []string `json:"events,omitempty"`
}

// UnsubscribePayload releases a channel opened by SubscribePayload.
type UnsubscribePayload struct {
	Channel string `json:"channel"`
}

// StatusPayload reports a channel lifecycle transition.
type StatusPayload struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// ChangePayload is one row-level change.
// Record is set for INSERT, OldRecord for DELETE.
type ChangePayload struct {
	Channel   string          `json:"channel"`
	Table     string          `json:"table"`
	Type      string          `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidEvent reports whether ev is a supported change event type.
func ValidEvent(ev string) bool {
	return ev == EventInsert || ev == EventDelete
}
