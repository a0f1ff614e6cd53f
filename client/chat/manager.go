package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/realtime"
	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

const (
	// MaxMessageLength is the longest accepted body, in characters, after trimming.
	MaxMessageLength = 1000

	DefaultHistoryLimit = 100
	DefaultChannelName  = "chat-messages"

	// journaled events are replayed over a freshly loaded history; older ones are dropped.
	maxJournal = 1024
)

// ConnStatus is the channel connection state shown to the user.
type ConnStatus string

const (
	StatusDisconnected ConnStatus = "disconnected"
	StatusConnecting   ConnStatus = "connecting"
	StatusConnected    ConnStatus = "connected"
)

// State is a point-in-time copy of the session.
type State struct {
	Status   ConnStatus
	Err      error // last user-facing error, nil when healthy
	Messages []Message
	// Version increases with every change. OnChange callbacks may race; keep the highest.
	Version uint64
}

// Config wires a Manager. History, Channel and Submitter are required.
type Config struct {
	History   HistoryLoader
	Channel   realtime.Subscriber
	Submitter Submitter
	// Identity returns the signed-in user, if any.
	Identity func() (Identity, bool)

	Clock          realtime.Clock
	Log            *slog.Logger
	ChannelName    string
	HistoryLimit   int
	ReconnectDelay time.Duration

	// OnChange is called outside the manager lock after every state change.
	OnChange func(State)
}

// Manager keeps an ordered, id-unique view of the room's messages in sync with the
// server and reconnects the change channel after failures.
type Manager struct {
	cfg       Config
	log       *slog.Logger
	reconnect *realtime.Reconnector

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	status      ConnStatus
	lastErr     error
	view        *view
	sub         realtime.Subscription
	subGen      uint64
	histGen     uint64
	histPending bool
	journal     []realtime.Event
	version     uint64
}

// NewManager starts the session: the history fetch and the channel are both issued
// before it returns, and the status is connecting.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.History == nil || cfg.Channel == nil || cfg.Submitter == nil {
		return nil, errors.New("chat: History, Channel and Submitter are required")
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
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Identity == nil {
		cfg.Identity = func() (Identity, bool) { return Identity{}, false }
	}

	mctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		cfg:       cfg,
		log:       cfg.Log.With("component", "chat.manager", "channel", cfg.ChannelName),
		reconnect: realtime.NewReconnector(cfg.Clock, cfg.ReconnectDelay),
		ctx:       mctx,
		cancel:    cancel,
		status:    StatusConnecting,
		view:      newView(),
	}

	m.mu.Lock()
	m.openLocked()
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
	return m, nil
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Reconnect drops any pending attempt, reopens the channel and reloads history. The
// current view stays visible until the new history arrives.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.reconnect.Cancel()
	m.openLocked()
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
}

// Submit sends body as the signed-in user. The message is not added locally; it shows
// up through the channel like everybody else's.
func (m *Manager) Submit(ctx context.Context, body string) error {
	const op = "chat.submit"

	text := strings.TrimSpace(body)
	switch n := utf8.RuneCountInString(text); {
	case n == 0:
		return &Error{Op: op, Kind: ErrValidation, Msg: "message is empty"}
	case n > MaxMessageLength:
		return &Error{Op: op, Kind: ErrValidation, Msg: "message is longer than 1000 characters"}
	}

	id, ok := m.cfg.Identity()
	if !ok || strings.TrimSpace(id.Token) == "" {
		return &Error{Op: op, Kind: ErrAuth, Msg: "sign in to send messages"}
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return &Error{Op: op, Kind: ErrConnectivity, Msg: "session closed"}
	}

	_, err := m.cfg.Submitter.Submit(ctx, SubmitRequest{Token: id.Token, Message: text, UserName: id.DisplayName})
	if err == nil {
		return nil
	}

	var ce *Error
	if !errors.As(err, &ce) {
		ce = &Error{Op: op, Kind: ErrSubmit, Err: err}
		err = ce
	}
	m.log.Warn("chat.submit.failed", "kind", ce.Kind.Error(), "status", ce.Status, "err", err)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err
	}
	m.lastErr = err
	m.version++
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
	return err
}

// Close releases the channel and cancels the pending reconnect. Callbacks arriving later
// are ignored. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.reconnect.Cancel()
	sub := m.sub
	m.sub = nil
	m.status = StatusDisconnected
	m.journal = nil
	m.mu.Unlock()

	m.cancel()
	if sub != nil {
		return sub.Close()
	}
	return nil
}

// openLocked replaces the subscription and issues a new history load. Callbacks of the
// previous subscription and load are discarded by generation.
func (m *Manager) openLocked() {
	if m.sub != nil {
		_ = m.sub.Close()
		m.sub = nil
	}
	m.status = StatusConnecting
	m.version++

	m.subGen++
	m.sub = m.cfg.Channel.Subscribe(m.ctx, realtime.Spec{
		Channel: m.cfg.ChannelName,
		Table:   v1.TableMessages,
	}, &channelHandler{m: m, gen: m.subGen})

	m.histGen++
	m.histPending = true
	m.journal = nil
	go m.loadHistory(m.histGen)
}

func (m *Manager) loadHistory(gen uint64) {
	records, err := m.cfg.History.Load(m.ctx, m.cfg.HistoryLimit)
	m.onHistoryLoaded(gen, records, err)
}

func (m *Manager) onHistoryLoaded(gen uint64, records []Message, err error) {
	m.mu.Lock()
	if m.closed || gen != m.histGen {
		m.mu.Unlock()
		return
	}
	m.histPending = false
	journal := m.journal
	m.journal = nil

	if err != nil {
		m.log.Warn("chat.history.failed", "err", err)
		m.lastErr = &Error{Op: "chat.history", Kind: kindOf(err, ErrConnectivity), Msg: "failed to load history", Err: err}
	} else {
		m.view.replace(records)
		for _, ev := range journal {
			m.applyLocked(ev)
		}
		m.log.Debug("chat.history.loaded", "count", len(records), "replayed", len(journal))
	}
	m.version++
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
}

func (m *Manager) onEvent(gen uint64, ev realtime.Event) {
	m.mu.Lock()
	if m.closed || gen != m.subGen {
		m.mu.Unlock()
		return
	}
	if m.histPending {
		if len(m.journal) >= maxJournal {
			m.journal = m.journal[1:]
		}
		m.journal = append(m.journal, ev)
	}
	changed := m.applyLocked(ev)
	if !changed {
		m.mu.Unlock()
		return
	}
	m.version++
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
}

func (m *Manager) onStatus(gen uint64, status realtime.Status, err error) {
	m.mu.Lock()
	if m.closed || gen != m.subGen {
		m.mu.Unlock()
		return
	}

	switch status {
	case realtime.StatusSubscribed:
		m.status = StatusConnected
		m.lastErr = nil
		m.log.Info("chat.channel.subscribed")
	case realtime.StatusClosed, realtime.StatusChannelError:
		m.status = StatusDisconnected
		if status == realtime.StatusChannelError {
			m.lastErr = &Error{Op: "chat.channel", Kind: ErrConnectivity, Msg: "connection lost", Err: err}
		}
		m.log.Warn("chat.channel.down", "status", string(status), "err", err, "retry_in", m.reconnect.Delay())
		m.reconnect.Schedule(m.Reconnect)
	default:
		m.mu.Unlock()
		return
	}
	m.version++
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
}

// applyLocked merges one change event into the view and reports whether it changed.
func (m *Manager) applyLocked(ev realtime.Event) bool {
	switch ev.Type {
	case realtime.EventInsert:
		var msg Message
		if err := json.Unmarshal(ev.Record, &msg); err != nil {
			m.log.Warn("chat.event.malformed", "type", ev.Type, "err", err)
			return false
		}
		return m.view.insert(msg)
	case realtime.EventDelete:
		var old struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.OldRecord, &old); err != nil {
			m.log.Warn("chat.event.malformed", "type", ev.Type, "err", err)
			return false
		}
		return m.view.remove(old.ID)
	default:
		return false
	}
}

func (m *Manager) stateLocked() State {
	return State{
		Status:   m.status,
		Err:      m.lastErr,
		Messages: m.view.snapshot(),
		Version:  m.version,
	}
}

func (m *Manager) notify(st State) {
	if m.cfg.OnChange != nil {
		m.cfg.OnChange(st)
	}
}

// kindOf keeps the kind of a typed error, or falls back to def.
func kindOf(err error, def error) error {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind != nil {
		return ce.Kind
	}
	return def
}

type channelHandler struct {
	m   *Manager
	gen uint64
}

func (h *channelHandler) OnEvent(ev realtime.Event) { h.m.onEvent(h.gen, ev) }

func (h *channelHandler) OnStatus(st realtime.Status, err error) { h.m.onStatus(h.gen, st, err) }
