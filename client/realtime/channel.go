package realtime

import (
	"context"
	"encoding/json"
	"time"

	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

// Status is a channel lifecycle transition.
type Status string

const (
	StatusSubscribed   Status = v1.StatusSubscribed
	StatusClosed       Status = v1.StatusClosed
	StatusChannelError Status = v1.StatusChannelError
)

// Terminal reports whether the channel delivers nothing after this status.
func (s Status) Terminal() bool { return s == StatusClosed || s == StatusChannelError }

// Event types.
const (
	EventInsert = v1.EventInsert
	EventDelete = v1.EventDelete
)

// Event is one row-level change. Record is set for inserts, OldRecord for deletes.
type Event struct {
	Table     string
	Type      string
	Record    json.RawMessage
	OldRecord json.RawMessage
	At        time.Time
}

// Spec names a channel and the table/events it listens to. Empty Events means all.
type Spec struct {
	Channel string
	Table   string
	Events  []string
}

// Handler receives the callbacks of one subscription. Calls for a subscription are
// sequential and arrive in the order the server emitted them.
type Handler interface {
	OnEvent(Event)
	// OnStatus reports a transition; err carries the reason for StatusChannelError.
	OnStatus(Status, error)
}

// HandlerFuncs adapts two functions to Handler. Nil members are ignored.
type HandlerFuncs struct {
	Event  func(Event)
	Status func(Status, error)
}

func (h HandlerFuncs) OnEvent(ev Event) {
	if h.Event != nil {
		h.Event(ev)
	}
}

func (h HandlerFuncs) OnStatus(st Status, err error) {
	if h.Status != nil {
		h.Status(st, err)
	}
}

// Subscription is an open channel.
type Subscription interface {
	// Close releases the channel. It does not block on in-flight callbacks and no
	// callback starts after it returns.
	Close() error
}

// Subscriber opens channels. Subscribe returns immediately and never calls h from
// inside Subscribe itself; the handshake result arrives later through h.OnStatus.
type Subscriber interface {
	Subscribe(ctx context.Context, spec Spec, h Handler) Subscription
}
