package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://supreme.example.com", want: "wss://supreme.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func newTestApp(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("SUPREME_AUTH_EPHEMERAL_KEY", "true")
	t.Setenv("SUPREME_PASETO_V4_SECRET_KEY_HEX", "")
	t.Setenv("SUPREME_FINGERPRINT_KEY", "")
	t.Setenv("SUPREME_WHATSAPP_ACCESS_TOKEN", "")

	cfg := LoadConfig()
	cfg.DatabaseURL = ""
	cfg.RedisAddr = ""

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.close)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestApp_ChatRoundTrip(t *testing.T) {
	srv := newTestApp(t)

	res, err := http.Post(srv.URL+"/auth/visitor", "application/json", strings.NewReader(`{"display_name":"Ana"}`))
	if err != nil {
		t.Fatalf("visitor: %v", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.NewDecoder(res.Body).Decode(&tok)
	_ = res.Body.Close()
	if res.StatusCode != http.StatusCreated || tok.AccessToken == "" {
		t.Fatalf("visitor status=%d token=%q", res.StatusCode, tok.AccessToken)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/chat/messages", strings.NewReader(`{"message":"  <b>Olá</b> "}`))
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status=%d", res.StatusCode)
	}
	if res.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}

	res, err = http.Get(srv.URL + "/api/chat/messages?limit=10")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var hist struct {
		Messages []struct {
			Message  string `json:"message"`
			UserName string `json:"user_name"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(res.Body).Decode(&hist)
	_ = res.Body.Close()
	if len(hist.Messages) != 1 || hist.Messages[0].Message != "bOlá/b" || hist.Messages[0].UserName != "Ana" {
		t.Fatalf("unexpected history: %+v", hist.Messages)
	}
}

func TestApp_OperationalRoutes(t *testing.T) {
	srv := newTestApp(t)

	for path, want := range map[string]int{
		"/healthz":           http.StatusOK,
		"/readyz":            http.StatusOK,
		"/metrics":           http.StatusOK,
		"/api/leads":         http.StatusUnauthorized,
		"/auth/me":           http.StatusUnauthorized,
		"/api/whatsapp/send": http.StatusMethodNotAllowed,
	} {
		res, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = res.Body.Close()
		if res.StatusCode != want {
			t.Fatalf("GET %s = %d want %d", path, res.StatusCode, want)
		}
	}
}
