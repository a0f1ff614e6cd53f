package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
)

type staticAuth map[string]session.AccessClaims

func (a staticAuth) Authenticate(r *http.Request) (session.AccessClaims, error) {
	c, ok := a[httpx.BearerToken(r)]
	if !ok {
		return session.AccessClaims{}, session.ErrInvalidToken
	}
	return c, nil
}

type fakeSender struct {
	calls int
	id    string
	err   error
}

func (f *fakeSender) Send(_ context.Context, _ SendRequest) (string, error) {
	f.calls++
	return f.id, f.err
}

func serve(t *testing.T, sender Sender, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	auth := staticAuth{
		"admin":   {UserID: "admin", Role: session.RoleAdmin},
		"visitor": {UserID: "v", Role: session.RoleVisitor},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewHandler(log, sender, auth, metrics.New()).Register(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/whatsapp/send", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestHandleSend(t *testing.T) {
	const ok = `{"to":"5511988887777","message":"Olá"}`

	t.Run("requires token", func(t *testing.T) {
		if rr := serve(t, &fakeSender{}, "", ok); rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})
	t.Run("requires admin", func(t *testing.T) {
		if rr := serve(t, &fakeSender{}, "visitor", ok); rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
	})
	t.Run("disabled", func(t *testing.T) {
		if rr := serve(t, nil, "admin", ok); rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		s := &fakeSender{}
		rr := serve(t, s, "admin", `{"to":"5511988887777","message":"oi","templateName":"x"}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		if s.calls != 0 {
			t.Fatalf("sender must not be called")
		}
		var e httpx.ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || !strings.Contains(e.Details, "message") {
			t.Fatalf("expected details, got %s", rr.Body.String())
		}
	})
	t.Run("upstream error", func(t *testing.T) {
		s := &fakeSender{err: &APIError{Status: 400, Code: 131030, Message: "not allowed"}}
		rr := serve(t, s, "admin", ok)
		if rr.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rr.Code)
		}
		var e httpx.ErrorResponse
		_ = json.Unmarshal(rr.Body.Bytes(), &e)
		if e.Details != "not allowed" {
			t.Fatalf("details = %q", e.Details)
		}
	})
	t.Run("ok", func(t *testing.T) {
		rr := serve(t, &fakeSender{id: "wamid.1"}, "admin", ok)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var out sendResponseBody
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !out.Success || out.MessageID != "wamid.1" {
			t.Fatalf("unexpected body: %+v", out)
		}
	})
}
