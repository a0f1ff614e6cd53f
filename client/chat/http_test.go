package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/chat"
)

func TestHTTPClient_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chat/messages", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []chat.Message{msg("a", 1), msg("b", 2)}})
	}))
	defer srv.Close()

	c := chat.NewHTTPClient(srv.URL+"/", srv.Client())
	got, err := c.Load(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.True(t, got[0].CreatedAt.Equal(t0.Add(time.Second)))
}

func TestHTTPClient_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "olá", body["message"])
		assert.Equal(t, "Ana", body["user_name"])

		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": msg("m1", 1)})
	}))
	defer srv.Close()

	c := chat.NewHTTPClient(srv.URL, srv.Client())
	got, err := c.Submit(context.Background(), chat.SubmitRequest{Token: "tok", Message: "olá", UserName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
}

func TestHTTPClient_SubmitErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		body       string
		kind       error
		msg        string
		wait       time.Duration
	}{
		{name: "rate limited", status: 429, retryAfter: "42", body: `{"error":"Rate limit exceeded."}`, kind: chat.ErrRateLimited, msg: "Rate limit exceeded.", wait: 42 * time.Second},
		{name: "unauthorized", status: 401, body: `{"error":"unauthorized"}`, kind: chat.ErrAuth, msg: "unauthorized"},
		{name: "bad request", status: 400, body: `{"error":"message is required"}`, kind: chat.ErrSubmit, msg: "message is required"},
		{name: "server error without body", status: 500, kind: chat.ErrSubmit, msg: "Internal Server Error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.retryAfter != "" {
					w.Header().Set("Retry-After", tc.retryAfter)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := chat.NewHTTPClient(srv.URL, srv.Client()).Submit(context.Background(), chat.SubmitRequest{Token: "t", Message: "x"})
			require.ErrorIs(t, err, tc.kind)

			var ce *chat.Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.status, ce.Status)
			assert.Equal(t, tc.msg, ce.Msg)
			assert.Equal(t, tc.wait, ce.RetryAfter)
		})
	}
}

func TestHTTPClient_TransportFailureIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := chat.NewHTTPClient(url, nil)
	_, err := c.Submit(context.Background(), chat.SubmitRequest{Token: "t", Message: "x"})
	require.ErrorIs(t, err, chat.ErrConnectivity)

	_, err = c.Load(context.Background(), 10)
	require.ErrorIs(t, err, chat.ErrConnectivity)
}

func TestHTTPClient_RequestVisitor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/visitor", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ana", body["display_name"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":         map[string]string{"id": "v1", "display_name": "Ana", "role": "visitor"},
			"access_token": "v4.public.xyz",
			"expires_at":   t0,
		})
	}))
	defer srv.Close()

	id, err := chat.NewHTTPClient(srv.URL, srv.Client()).RequestVisitor(context.Background(), "Ana")
	require.NoError(t, err)
	assert.Equal(t, chat.Identity{UserID: "v1", DisplayName: "Ana", Token: "v4.public.xyz"}, id)
}
