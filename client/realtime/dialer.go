package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/oklog/ulid/v2"

	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

const (
	defaultDialTimeout = 10 * time.Second
	maxFrameBytes      = 1 << 20
)

// Dialer opens one WebSocket per subscription against the server's /realtime endpoint.
type Dialer struct {
	// URL is the ws(s):// address of the realtime endpoint.
	URL string
	// Token returns the bearer token for the upgrade; nil or "" means anonymous.
	Token       func() string
	HTTPClient  *http.Client
	DialTimeout time.Duration
	Log         *slog.Logger
}

// Subscribe starts the handshake in the background and returns at once.
func (d *Dialer) Subscribe(ctx context.Context, spec Spec, h Handler) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &wsSubscription{cancel: cancel, done: make(chan struct{})}
	go s.run(ctx, d, spec, h)
	return s
}

type wsSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Close cancels the socket. Callbacks already running finish; none start afterwards.
func (s *wsSubscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return nil
}

// Done is closed when the socket goroutine has exited.
func (s *wsSubscription) Done() <-chan struct{} { return s.done }

func (s *wsSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *wsSubscription) run(ctx context.Context, d *Dialer, spec Spec, h Handler) {
	defer close(s.done)
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("channel", spec.Channel, "table", spec.Table)

	// terminal is delivered at most once and never after Close.
	var terminated bool
	terminal := func(st Status, err error) {
		if terminated || s.isClosed() {
			return
		}
		terminated = true
		h.OnStatus(st, err)
	}

	conn, err := d.dial(ctx)
	if err != nil {
		log.Info("realtime.dial.fail", "err", err)
		terminal(StatusChannelError, err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(maxFrameBytes)

	sub, err := v1.NewEnvelope(v1.TypeSubscribe, newEnvelopeID(), time.Now().UTC(), v1.SubscribePayload{
		Channel: spec.Channel,
		Table:   spec.Table,
		Events:  spec.Events,
	})
	if err == nil {
		err = wsjson.Write(ctx, conn, sub)
	}
	if err != nil {
		terminal(StatusChannelError, fmt.Errorf("send subscribe: %w", err))
		return
	}

	for {
		var env v1.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				terminal(StatusClosed, err)
			default:
				terminal(StatusChannelError, err)
			}
			return
		}
		if s.isClosed() {
			return
		}

		switch env.Type {
		case v1.TypeStatus:
			var p v1.StatusPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil || p.Channel != spec.Channel {
				continue
			}
			switch Status(p.Status) {
			case StatusSubscribed:
				h.OnStatus(StatusSubscribed, nil)
			case StatusClosed:
				terminal(StatusClosed, nil)
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			case StatusChannelError:
				terminal(StatusChannelError, errors.New(p.Reason))
				_ = conn.Close(websocket.StatusNormalClosure, "channel error")
				return
			}

		case v1.TypeChange:
			var p v1.ChangePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				log.Warn("realtime.change.decode.fail", "err", err)
				continue
			}
			if p.Channel != spec.Channel {
				continue
			}
			h.OnEvent(Event{
				Table:     p.Table,
				Type:      p.Type,
				Record:    p.Record,
				OldRecord: p.OldRecord,
				At:        env.TS,
			})

		case v1.TypeError:
			var p v1.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			log.Warn("realtime.server.error", "code", p.Code, "message", p.Message)
		}
	}
}

func (d *Dialer) dial(ctx context.Context) (*websocket.Conn, error) {
	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	if d.Token != nil {
		if tok := strings.TrimSpace(d.Token()); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := websocket.Dial(dialCtx, d.URL, &websocket.DialOptions{
		HTTPClient:   d.HTTPClient,
		HTTPHeader:   header,
		Subprotocols: []string{v1.Subprotocol},
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", d.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	if conn.Subprotocol() != v1.Subprotocol {
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return nil, fmt.Errorf("dial %s: server did not select %s", d.URL, v1.Subprotocol)
	}
	return conn, nil
}

func newEnvelopeID() string { return strings.ToLower(ulid.Make().String()) }
