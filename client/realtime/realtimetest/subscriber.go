package realtimetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/realtime"
)

// FakeSubscriber records every Subscribe call. Tests drive the handlers through the
// returned FakeSubscriptions.
type FakeSubscriber struct {
	mu   sync.Mutex
	subs []*FakeSubscription
}

func (f *FakeSubscriber) Subscribe(_ context.Context, spec realtime.Spec, h realtime.Handler) realtime.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &FakeSubscription{Spec: spec, h: h}
	f.subs = append(f.subs, s)
	return s
}

// Count returns how many subscriptions were opened.
func (f *FakeSubscriber) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// At returns the i-th subscription opened.
func (f *FakeSubscriber) At(i int) *FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

// Last returns the most recent subscription, or nil.
func (f *FakeSubscriber) Last() *FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

// FakeSubscription delivers whatever the test emits, even after Close, so tests can
// check that consumers ignore stale callbacks.
type FakeSubscription struct {
	Spec realtime.Spec
	h    realtime.Handler

	mu     sync.Mutex
	closed bool
}

func (s *FakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSubscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Emit delivers ev to the handler.
func (s *FakeSubscription) Emit(ev realtime.Event) { s.h.OnEvent(ev) }

// SetStatus delivers a status transition to the handler.
func (s *FakeSubscription) SetStatus(st realtime.Status, err error) { s.h.OnStatus(st, err) }

// Insert builds an INSERT event carrying record as JSON.
func Insert(table string, record any) realtime.Event {
	raw, err := json.Marshal(record)
	if err != nil {
		panic(err)
	}
	return realtime.Event{Table: table, Type: realtime.EventInsert, Record: raw}
}

// Delete builds a DELETE event carrying old as JSON.
func Delete(table string, old any) realtime.Event {
	raw, err := json.Marshal(old)
	if err != nil {
		panic(err)
	}
	return realtime.Event{Table: table, Type: realtime.EventDelete, OldRecord: raw}
}
