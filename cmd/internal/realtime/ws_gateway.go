package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
)

const (
	wsCloseGrace      = 1 * time.Second
	wsMaxPingFailures = 3
)

// TokenValidator validates bearer tokens presented on upgrade.
type TokenValidator interface {
	ValidateAccessToken(token string, now time.Time) (session.AccessClaims, error)
}

// WSGateway is the WebSocket entrypoint for change subscriptions.
//
// It enforces origin policy, subprotocol selection, per-connection frame limits and
// heartbeats, authorizes each subscribe against the table policy and streams the Hub's
// change envelopes back.
type WSGateway struct {
	log    *slog.Logger
	hub    *Hub
	tokens TokenValidator
	cfg    GatewayConfig

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string
}

// NewWSGateway constructs a gateway. tokens may be nil, in which case every session is
// anonymous and admin-only tables are refused.
func NewWSGateway(log *slog.Logger, hub *Hub, tokens TokenValidator, cfg GatewayConfig) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log, nil)
	}
	if cfg.SendQueueSize < wsMinSendQueueSize {
		cfg.SendQueueSize = wsMinSendQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = wsDefaultWriteTimeout
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = heartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = heartbeatTimeout
	}

	return &WSGateway{
		log:            log,
		hub:            hub,
		tokens:         tokens,
		cfg:            cfg,
		originPatterns: deriveOriginPatternsFromAllowedOrigins(cfg.AllowedOrigins),
	}
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the subscription loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	claims, err := g.authenticate(r)
	if err != nil {
		g.log.Info("ws.reject.auth", "remote", r.RemoteAddr)
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{v1.Subprotocol},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionID := NewRandomHex(10)
	client := NewClient(sessionID, claims.UserID, claims.IsAdmin(), g.cfg.SendQueueSize)
	g.log.Info("ws.session.open", "session_id", sessionID, "user_id", claims.UserID, "admin", client.Admin)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		closeOnce sync.Once
		subsMu    sync.Mutex
		subs      = make(map[string]*Subscription)
	)

	// shutdown is idempotent. It does NOT close client.Send: subscriptions are removed from
	// the hub before client.Close so broadcasters never hold a dead client.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			subsMu.Lock()
			for name, s := range subs {
				g.hub.Channel(s.Table).Leave(sessionID, name)
				delete(subs, name)
			}
			subsMu.Unlock()

			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	// A broadcaster closes the client when its queue overflows; end the session so the
	// peer sees an error close and reloads.
	go func() {
		select {
		case <-ctx.Done():
		case <-client.Done():
			shutdown(websocket.StatusTryAgainLater, "send queue overflow")
		}
	}()

	rl := newFrameLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	// Listeners only receive, so there is no read deadline; the heartbeat detects dead peers.
readLoop:
	for {
		env, err := readEnvelope(ctx, conn)

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.allow(now) {
			g.trySendError(client, "rate_limited", "too many frames")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeSubscribe:
			sub, err := g.onSubscribe(client, env)
			if err != nil {
				continue readLoop
			}
			subsMu.Lock()
			if prev, ok := subs[sub.Channel]; ok && prev.Table != sub.Table {
				g.hub.Channel(prev.Table).Leave(sessionID, prev.Channel)
			}
			if _, ok := subs[sub.Channel]; !ok && len(subs) >= maxSubscriptionsPerConn {
				subsMu.Unlock()
				g.sendStatus(client, sub.Channel, v1.StatusChannelError, "too many subscriptions")
				continue readLoop
			}
			subs[sub.Channel] = sub
			subsMu.Unlock()

			g.hub.Channel(sub.Table).Join(sub)
			g.sendStatus(client, sub.Channel, v1.StatusSubscribed, "")
			g.log.Info("realtime.subscribe.ok", "session_id", sessionID, "channel", sub.Channel, "table", sub.Table)

		case v1.TypeUnsubscribe:
			var p v1.UnsubscribePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				g.trySendError(client, "bad_payload", "invalid unsubscribe payload")
				continue readLoop
			}
			subsMu.Lock()
			s, ok := subs[p.Channel]
			delete(subs, p.Channel)
			subsMu.Unlock()
			if ok {
				g.hub.Channel(s.Table).Leave(sessionID, s.Channel)
			}
			g.sendStatus(client, p.Channel, v1.StatusClosed, "unsubscribed")

		default:
			g.trySendError(client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	g.log.Info("ws.session.close", "session_id", sessionID)
}

// onSubscribe validates and authorizes a subscribe request. Failures are reported to the
// client as a CHANNEL_ERROR status (or an error envelope when no channel name is known).
func (g *WSGateway) onSubscribe(client *Client, env v1.Envelope) (*Subscription, error) {
	var p v1.SubscribePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		g.trySendError(client, "bad_payload", "invalid subscribe payload")
		return nil, err
	}

	name := strings.TrimSpace(p.Channel)
	if name == "" || utf8.RuneCountInString(name) > maxChannelNameChars {
		g.trySendError(client, "bad_channel", "channel name required (max 128 chars)")
		return nil, errors.New("bad channel name")
	}

	for _, ev := range p.Events {
		if !v1.ValidEvent(ev) {
			g.sendStatus(client, name, v1.StatusChannelError, "unsupported event: "+ev)
			return nil, errors.New("bad event")
		}
	}

	if err := authorizeTable(p.Table, client.Admin); err != nil {
		g.log.Info("realtime.subscribe.denied", "session_id", client.SessionID, "table", p.Table, "err", err)
		g.sendStatus(client, name, v1.StatusChannelError, err.Error())
		return nil, err
	}

	return NewSubscription(client, name, p.Table, p.Events), nil
}

// authenticate resolves the optional bearer token. Browsers cannot set headers on a
// websocket upgrade, so the token may also arrive as the access_token query parameter.
// No token means an anonymous session; a bad token is an error.
func (g *WSGateway) authenticate(r *http.Request) (session.AccessClaims, error) {
	tok := httpx.BearerToken(r)
	if tok == "" {
		tok = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if tok == "" {
		return session.AccessClaims{}, nil
	}
	if g.tokens == nil {
		return session.AccessClaims{}, session.ErrInvalidToken
	}
	return g.tokens.ValidateAccessToken(tok, time.Now().UTC())
}

// ---- send helpers ----

func (g *WSGateway) sendStatus(client *Client, channel, status, reason string) {
	env, err := v1.NewEnvelope(v1.TypeStatus, NewEnvelopeID(time.Now()), time.Now().UTC(), v1.StatusPayload{
		Channel: channel,
		Status:  status,
		Reason:  reason,
	})
	if err != nil {
		return
	}
	if !client.trySend(env) {
		g.log.Warn("ws.status.dropped", "session_id", client.SessionID, "channel", channel, "status", status)
	}
}

func (g *WSGateway) trySendError(client *Client, code, msg string) {
	env, err := v1.NewEnvelope(v1.TypeError, NewEnvelopeID(time.Now()), time.Now().UTC(), v1.ErrorPayload{Code: code, Message: msg})
	if err != nil {
		return
	}
	_ = client.trySend(env)
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatternsFromAllowedOrigins keeps websocket.Accept's own origin check in
// agreement with the allowlist. A "*" entry becomes the match-all pattern.
func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			return []string{"*"}
		}
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
