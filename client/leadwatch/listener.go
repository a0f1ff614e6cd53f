package leadwatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/realtime"
	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

const (
	// DefaultSettleWindow is how long after start inserts are treated as the startup burst.
	DefaultSettleWindow = 2000 * time.Millisecond
	DefaultChannelName  = "leads-notifications"
)

// Config wires a Listener. Channel is required; Notifier and Ringer are optional.
type Config struct {
	Channel  realtime.Subscriber
	Notifier Notifier
	Ringer   Ringer

	Clock          realtime.Clock
	Log            *slog.Logger
	ChannelName    string
	SettleWindow   time.Duration
	ReconnectDelay time.Duration
}

// Listener raises one alert per lead created after the settling window.
type Listener struct {
	cfg       Config
	log       *slog.Logger
	reconnect *realtime.Reconnector

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	started time.Time
	seen    map[string]struct{}
	sub     realtime.Subscription
	gen     uint64
	alerts  int
}

// NewListener subscribes to lead inserts. The settling window runs from this call.
func NewListener(ctx context.Context, cfg Config) (*Listener, error) {
	if cfg.Channel == nil {
		return nil, errors.New("leadwatch: Channel is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = realtime.SystemClock{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if strings.TrimSpace(cfg.ChannelName) == "" {
		cfg.ChannelName = DefaultChannelName
	}
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = DefaultSettleWindow
	}

	lctx, cancel := context.WithCancel(ctx)
	l := &Listener{
		cfg:       cfg,
		log:       cfg.Log.With("component", "leadwatch", "channel", cfg.ChannelName),
		reconnect: realtime.NewReconnector(cfg.Clock, cfg.ReconnectDelay),
		ctx:       lctx,
		cancel:    cancel,
		seen:      make(map[string]struct{}),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = cfg.Clock.Now()
	l.subscribeLocked()
	return l, nil
}

// Alerts returns how many alerts were raised.
func (l *Listener) Alerts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alerts
}

// Close releases the subscription and any pending reconnect.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.reconnect.Cancel()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()

	l.cancel()
	if l.cfg.Ringer != nil {
		l.cfg.Ringer.Stop()
	}
	if sub != nil {
		return sub.Close()
	}
	return nil
}

func (l *Listener) subscribeLocked() {
	if l.sub != nil {
		_ = l.sub.Close()
	}
	l.gen++
	gen := l.gen
	l.sub = l.cfg.Channel.Subscribe(l.ctx, realtime.Spec{
		Channel: l.cfg.ChannelName,
		Table:   v1.TableLeads,
		Events:  []string{realtime.EventInsert},
	}, realtime.HandlerFuncs{
		Event:  func(ev realtime.Event) { l.onEvent(gen, ev) },
		Status: func(st realtime.Status, err error) { l.onStatus(gen, st, err) },
	})
}

func (l *Listener) resubscribe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.subscribeLocked()
}

func (l *Listener) onEvent(gen uint64, ev realtime.Event) {
	if ev.Type != realtime.EventInsert {
		return
	}
	var lead Lead
	if err := json.Unmarshal(ev.Record, &lead); err != nil || lead.ID == "" {
		l.log.Warn("leadwatch.event.malformed", "err", err)
		return
	}

	l.mu.Lock()
	if l.closed || gen != l.gen {
		l.mu.Unlock()
		return
	}
	if _, dup := l.seen[lead.ID]; dup {
		l.mu.Unlock()
		return
	}
	l.seen[lead.ID] = struct{}{}

	// The window is closed on both ends: a lead at exactly SettleWindow is suppressed.
	now := l.cfg.Clock.Now()
	if now.Sub(l.started) <= l.cfg.SettleWindow {
		l.mu.Unlock()
		l.log.Debug("leadwatch.lead.suppressed", "lead_id", lead.ID)
		return
	}
	l.alerts++
	l.mu.Unlock()

	alert := newAlert(lead, now)
	l.log.Info("leadwatch.lead.alert", "lead_id", lead.ID, "source", lead.Source)
	if l.cfg.Notifier != nil {
		l.cfg.Notifier.Notify(alert)
	}
	if l.cfg.Ringer != nil {
		l.cfg.Ringer.Restart()
	}
}

func (l *Listener) onStatus(gen uint64, st realtime.Status, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || gen != l.gen {
		return
	}
	switch st {
	case realtime.StatusSubscribed:
		l.log.Info("leadwatch.subscribed")
	case realtime.StatusClosed, realtime.StatusChannelError:
		l.log.Warn("leadwatch.channel.down", "status", string(st), "err", err, "retry_in", l.reconnect.Delay())
		l.reconnect.Schedule(l.resubscribe)
	}
}
