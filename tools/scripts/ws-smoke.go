// Package main provides a CI-friendly smoke test for the Supreme realtime API.
//
// It validates:
//   - handshake + subprotocol selection
//   - subscribe -> SUBSCRIBED on the messages table
//   - anonymous subscribe to leads -> CHANNEL_ERROR
//   - visitor token issuance and authenticated submit
//   - INSERT change delivered for the submitted message
//   - history fetch contains the message
//   - empty submit rejected with 400
//   - unsubscribe -> CLOSED
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	conn  *websocket.Conn
	inbox chan v1.Envelope
	errCh chan error
}

type chatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func main() {
	var (
		server  = flag.String("server", "http://127.0.0.1:8080", "Server base URL (http/https)")
		origin  = flag.String("origin", "", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "olá <b>supreme</b> 👋", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, wsURL, err := deriveURLs(*server)
	if err != nil {
		fatalf("invalid -server: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()
	hc := &http.Client{Timeout: *timeout}

	token := mustVisitorToken(root, hc, base, "smoke")

	c := mustConnect(root, wsURL, *origin, *timeout)
	defer closeWS(c.conn)

	const msgChannel = "smoke-messages"
	mustSubscribe(root, c, msgChannel, v1.TableMessages, v1.StatusSubscribed, *timeout)
	mustSubscribe(root, c, "smoke-leads", v1.TableLeads, v1.StatusChannelError, *timeout)

	sent := mustSubmit(root, hc, base, token, *text)
	if strings.ContainsAny(sent.Message, "<>") {
		fatalf("submit: message not sanitized: %q", sent.Message)
	}
	if *verbose {
		fmt.Printf("submitted: id=%s message=%q\n", sent.ID, sent.Message)
	}

	mustAssertInsert(root, c, msgChannel, sent, *timeout)
	mustHistoryContains(root, hc, base, sent.ID)
	mustRejectEmpty(root, hc, base, token)

	mustUnsubscribe(root, c, msgChannel, *timeout)

	fmt.Printf("OK: message_id=%s channel=%s\n", sent.ID, msgChannel)
}

func deriveURLs(raw string) (base, ws string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", "", errors.New("missing host")
	}
	switch u.Scheme {
	case "http":
		ws = "ws://" + u.Host + "/realtime"
	case "https":
		ws = "wss://" + u.Host + "/realtime"
	default:
		return "", "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return u.Scheme + "://" + u.Host, ws, nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustVisitorToken(ctx context.Context, hc *http.Client, base, name string) string {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	status := mustDoJSON(ctx, hc, http.MethodPost, base+"/auth/visitor", "", map[string]string{"display_name": name}, &out)
	if status != http.StatusOK && status != http.StatusCreated {
		fatalf("visitor: unexpected status %d", status)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		fatalf("visitor: missing access_token")
	}
	return out.AccessToken
}

func mustSubmit(ctx context.Context, hc *http.Client, base, token, text string) chatMessage {
	var out struct {
		Success bool        `json:"success"`
		Message chatMessage `json:"message"`
	}
	status := mustDoJSON(ctx, hc, http.MethodPost, base+"/api/chat/messages", token, map[string]string{"message": text, "user_name": "smoke"}, &out)
	if status/100 != 2 || !out.Success {
		fatalf("submit: status=%d success=%v", status, out.Success)
	}
	if strings.TrimSpace(out.Message.ID) == "" {
		fatalf("submit: missing message id")
	}
	if out.Message.CreatedAt.IsZero() {
		fatalf("submit: missing created_at")
	}
	return out.Message
}

func mustHistoryContains(ctx context.Context, hc *http.Client, base, id string) {
	var out struct {
		Messages []chatMessage `json:"messages"`
	}
	status := mustDoJSON(ctx, hc, http.MethodGet, base+"/api/chat/messages?limit=100", "", nil, &out)
	if status != http.StatusOK {
		fatalf("history: unexpected status %d", status)
	}
	for i, m := range out.Messages {
		if i > 0 && m.CreatedAt.Before(out.Messages[i-1].CreatedAt) {
			fatalf("history: not ascending at index %d", i)
		}
		if m.ID == id {
			return
		}
	}
	fatalf("history: message %s not found among %d", id, len(out.Messages))
}

func mustRejectEmpty(ctx context.Context, hc *http.Client, base, token string) {
	var out struct {
		Error string `json:"error"`
	}
	status := mustDoJSON(ctx, hc, http.MethodPost, base+"/api/chat/messages", token, map[string]string{"message": "   "}, &out)
	if status != http.StatusBadRequest {
		fatalf("empty submit: expected 400, got %d", status)
	}
	if strings.TrimSpace(out.Error) == "" {
		fatalf("empty submit: missing error message")
	}
}

func mustDoJSON(ctx context.Context, hc *http.Client, method, target, token string, body, out any) int {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s %s: %v", method, target, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		fatalf("request %s %s: %v", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		fatalf("read %s %s: %v", method, target, err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("decode %s %s (status %d): %v", method, target, resp.StatusCode, err)
		}
	}
	return resp.StatusCode
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if err := env.Validate(); err != nil {
				c.fail(fmt.Errorf("bad envelope: %w", err))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func mustSubscribe(parent context.Context, c *smokeClient, channel, table, wantStatus string, stepTimeout time.Duration) {
	env := mustEnvelope(v1.TypeSubscribe, "sub-"+channel, v1.SubscribePayload{Channel: channel, Table: table})
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	st := c.mustReadStatus(parent, channel, stepTimeout)
	if st.Status != wantStatus {
		fatalf("subscribe %s/%s: status=%q reason=%q want=%q", channel, table, st.Status, st.Reason, wantStatus)
	}
}

func mustUnsubscribe(parent context.Context, c *smokeClient, channel string, stepTimeout time.Duration) {
	env := mustEnvelope(v1.TypeUnsubscribe, "unsub-"+channel, v1.UnsubscribePayload{Channel: channel})
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	st := c.mustReadStatus(parent, channel, stepTimeout)
	if st.Status != v1.StatusClosed {
		fatalf("unsubscribe %s: status=%q want=%q", channel, st.Status, v1.StatusClosed)
	}
}

func mustAssertInsert(parent context.Context, c *smokeClient, channel string, want chatMessage, stepTimeout time.Duration) {
	for {
		env := c.mustReadUntilType(parent, v1.TypeChange, stepTimeout)

		var p v1.ChangePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal change payload: %v", err)
		}
		if p.Channel != channel || p.Type != v1.EventInsert {
			continue
		}
		if p.Table != v1.TableMessages {
			fatalf("change table mismatch: got=%q want=%q", p.Table, v1.TableMessages)
		}

		var got chatMessage
		if err := json.Unmarshal(p.Record, &got); err != nil {
			fatalf("unmarshal change record: %v", err)
		}
		if got.ID != want.ID {
			// another writer's message; keep waiting for ours
			continue
		}
		if got.Message != want.Message {
			fatalf("change message mismatch: got=%q want=%q", got.Message, want.Message)
		}
		return
	}
}

func (c *smokeClient) mustReadStatus(parent context.Context, channel string, stepTimeout time.Duration) v1.StatusPayload {
	for {
		env := c.mustReadUntilType(parent, v1.TypeStatus, stepTimeout)
		var p v1.StatusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal status payload: %v", err)
		}
		if p.Channel == channel {
			return p
		}
	}
}

// mustReadUntilType skips envelopes of other types, except errors which fail the run.
func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q: %v", wantType, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q: %v", wantType, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q", wantType)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error: code=%q msg=%q", ep.Code, ep.Message)
			}
		}
	}
}

func mustEnvelope(typ, id string, payload any) v1.Envelope {
	env, err := v1.NewEnvelope(typ, id, time.Now().UTC(), payload)
	if err != nil {
		fatalf("build %s envelope: %v", typ, err)
	}
	return env
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
