package realtime

import (
	"log/slog"
	"sync"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

type subKey struct {
	session string
	channel string
}

// Subscription binds one client channel name to a table and an event filter.
type Subscription struct {
	Client  *Client
	Channel string
	Table   string
	events  map[string]bool
}

// NewSubscription builds a subscription. Empty events means every event type.
func NewSubscription(client *Client, channel, table string, events []string) *Subscription {
	set := make(map[string]bool, 2)
	if len(events) == 0 {
		set[v1.EventInsert] = true
		set[v1.EventDelete] = true
	}
	for _, ev := range events {
		set[ev] = true
	}
	return &Subscription{Client: client, Channel: channel, Table: table, events: set}
}

// Wants reports whether the subscription filter includes event type typ.
func (s *Subscription) Wants(typ string) bool {
	return s != nil && s.events[typ]
}

// TableChannel is the in-memory subscriber set + broadcast fanout for one table.
//
// Join/Leave are safe under concurrent Broadcast. Broadcast never blocks: a client whose
// queue is full is closed, so its session ends with an error status and the peer resyncs.
type TableChannel struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	Table   string

	mu   sync.RWMutex
	subs map[subKey]*Subscription
}

// NewTableChannel constructs an empty channel for table.
func NewTableChannel(log *slog.Logger, m *metrics.Metrics, table string) *TableChannel {
	if log == nil {
		log = slog.Default()
	}
	return &TableChannel{
		log:     log,
		metrics: m,
		Table:   table,
		subs:    make(map[subKey]*Subscription),
	}
}

// Join adds (or replaces) a subscription.
func (c *TableChannel) Join(sub *Subscription) {
	if c == nil || sub == nil || sub.Client == nil || sub.Client.SessionID == "" {
		return
	}
	k := subKey{session: sub.Client.SessionID, channel: sub.Channel}

	c.mu.Lock()
	_, existed := c.subs[k]
	c.subs[k] = sub
	c.mu.Unlock()

	if !existed {
		c.metrics.SubscriberAdded(c.Table)
	}
	c.log.Debug("realtime.channel.join", "table", c.Table, "session_id", k.session, "channel", k.channel)
}

// Leave removes a subscription. It does not close the client, which may hold others.
func (c *TableChannel) Leave(sessionID, channel string) {
	if c == nil || sessionID == "" {
		return
	}
	k := subKey{session: sessionID, channel: channel}

	c.mu.Lock()
	_, existed := c.subs[k]
	delete(c.subs, k)
	c.mu.Unlock()

	if existed {
		c.metrics.SubscriberRemoved(c.Table)
		c.log.Debug("realtime.channel.leave", "table", c.Table, "session_id", sessionID, "channel", channel)
	}
}

// Len reports the number of subscriptions.
func (c *TableChannel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Broadcast fans a change out to every matching subscription and returns how many
// envelopes were queued.
func (c *TableChannel) Broadcast(ch Change) int {
	if c == nil {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	queued := 0
	for _, s := range c.subs {
		if !s.Wants(ch.Type) {
			continue
		}
		env, err := v1.NewEnvelope(v1.TypeChange, ch.ID, ch.At, v1.ChangePayload{
			Channel:   s.Channel,
			Table:     ch.Table,
			Type:      ch.Type,
			Record:    ch.Record,
			OldRecord: ch.OldRecord,
		})
		if err != nil {
			c.log.Error("realtime.change.encode.fail", "err", err, "table", ch.Table)
			return queued
		}
		if s.Client.trySend(env) {
			queued++
			c.metrics.ChangeDelivered(ch.Table, ch.Type)
		} else if !s.Client.Closed() {
			c.metrics.ChangeDropped()
			c.log.Warn("realtime.change.overflow", "table", ch.Table, "session_id", s.Client.SessionID)
			s.Client.Close()
		}
	}
	return queued
}
