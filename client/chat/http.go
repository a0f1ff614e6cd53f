package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	messagesPath     = "/api/chat/messages"
	visitorPath      = "/auth/visitor"
	maxResponseBytes = 1 << 20
)

// HistoryLoader fetches the most recent limit messages in ascending creation order.
type HistoryLoader interface {
	Load(ctx context.Context, limit int) ([]Message, error)
}

// SubmitRequest is one outbound chat line.
type SubmitRequest struct {
	Token    string
	Message  string
	UserName string
}

// Submitter posts a message on behalf of an identity.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (Message, error)
}

// Identity is the bearer credential and display name of the local user.
type Identity struct {
	UserID      string
	DisplayName string
	Token       string
}

// HTTPClient talks to the Supreme HTTP API. It implements HistoryLoader and Submitter.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient returns a client for baseURL (e.g. http://127.0.0.1:8080).
func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), HTTP: hc}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (c *HTTPClient) endpoint(path string) (string, error) {
	if c.BaseURL == "" {
		return "", errors.New("base URL is empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	return u.JoinPath(path).String(), nil
}

// Load implements HistoryLoader.
func (c *HTTPClient) Load(ctx context.Context, limit int) ([]Message, error) {
	const op = "chat.history"

	ep, err := c.endpoint(messagesPath)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	if limit > 0 {
		ep += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep, nil)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}

	// #nosec G107 -- BaseURL is operator configuration.
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp, body)
	}

	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Op: op, Kind: ErrSubmit, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return out.Messages, nil
}

// Submit implements Submitter.
func (c *HTTPClient) Submit(ctx context.Context, in SubmitRequest) (Message, error) {
	const op = "chat.submit"

	ep, err := c.endpoint(messagesPath)
	if err != nil {
		return Message{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	payload, err := json.Marshal(map[string]string{"message": in.Message, "user_name": in.UserName})
	if err != nil {
		return Message{}, &Error{Op: op, Kind: ErrValidation, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
	if err != nil {
		return Message{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+in.Token)

	// #nosec G107 -- BaseURL is operator configuration.
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Message{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Message{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Message{}, statusError(op, resp, body)
	}

	var out struct {
		Success bool    `json:"success"`
		Message Message `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.Success {
		return Message{}, &Error{Op: op, Kind: ErrSubmit, Status: resp.StatusCode, Msg: "unexpected response"}
	}
	return out.Message, nil
}

// RequestVisitor asks the server for an anonymous visitor identity.
func (c *HTTPClient) RequestVisitor(ctx context.Context, displayName string) (Identity, error) {
	const op = "chat.visitor"

	ep, err := c.endpoint(visitorPath)
	if err != nil {
		return Identity{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	payload, _ := json.Marshal(map[string]string{"display_name": displayName})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(payload))
	if err != nil {
		return Identity{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	// #nosec G107 -- BaseURL is operator configuration.
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Identity{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Identity{}, &Error{Op: op, Kind: ErrConnectivity, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Identity{}, statusError(op, resp, body)
	}

	var out struct {
		User struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"user"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return Identity{}, &Error{Op: op, Kind: ErrAuth, Status: resp.StatusCode, Msg: "no token in response"}
	}
	return Identity{UserID: out.User.ID, DisplayName: out.User.DisplayName, Token: out.AccessToken}, nil
}

// statusError maps a non-2xx answer: 401 is ErrAuth, 429 ErrRateLimited, anything else
// ErrSubmit. The server's {error} text becomes Msg.
func statusError(op string, resp *http.Response, body []byte) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := strings.TrimSpace(eb.Error)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	e := &Error{Op: op, Kind: ErrSubmit, Status: resp.StatusCode, Msg: msg}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e.Kind = ErrAuth
	case http.StatusTooManyRequests:
		e.Kind = ErrRateLimited
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}
