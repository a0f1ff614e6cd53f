package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
)

type headerAuth map[string]session.AccessClaims

func (a headerAuth) Authenticate(r *http.Request) (session.AccessClaims, error) {
	c, ok := a[httpx.BearerToken(r)]
	if !ok {
		return session.AccessClaims{}, session.ErrInvalidToken
	}
	return c, nil
}

var testAuth = headerAuth{
	"visitor": {UserID: "visitor_1", DisplayName: "Maria", Role: session.RoleVisitor},
	"admin":   {UserID: "admin", DisplayName: "Corretor", Role: session.RoleAdmin},
}

func newTestMux() (*http.ServeMux, *Service) {
	svc, _, _ := newTestService()
	mux := http.NewServeMux()
	NewHandler(quietLogger(), svc, testAuth).Register(mux)
	return mux, svc
}

func do(mux http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestHandler_SubmitAndHistory(t *testing.T) {
	mux, _ := newTestMux()

	rr := do(mux, http.MethodPost, "/api/chat/messages", `{"message":"Quero visitar o apartamento"}`, "visitor")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var sub submitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sub.Success || sub.Message.UserName != "Maria" || sub.Message.UserID != "visitor_1" {
		t.Fatalf("unexpected submit response: %+v", sub)
	}

	rr = do(mux, http.MethodGet, "/api/chat/messages?limit=100", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var hist historyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Messages) != 1 || hist.Messages[0].ID != sub.Message.ID {
		t.Fatalf("unexpected history: %+v", hist.Messages)
	}
}

func TestHandler_SubmitErrors(t *testing.T) {
	mux, _ := newTestMux()

	cases := []struct {
		name  string
		body  string
		token string
		want  int
	}{
		{"no token", `{"message":"oi"}`, "", http.StatusUnauthorized},
		{"bad token", `{"message":"oi"}`, "forged", http.StatusUnauthorized},
		{"empty message", `{"message":"   "}`, "visitor", http.StatusBadRequest},
		{"unknown field", `{"message":"oi","admin":true}`, "visitor", http.StatusBadRequest},
		{"not json", `oi`, "visitor", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(mux, http.MethodPost, "/api/chat/messages", tc.body, tc.token)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
			var e httpx.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Error == "" {
				t.Fatalf("expected {error} body, got %s", rr.Body.String())
			}
		})
	}
}

func TestHandler_RateLimited(t *testing.T) {
	mux, _ := newTestMux()

	for i := 0; i < SubmitLimit; i++ {
		if rr := do(mux, http.MethodPost, "/api/chat/messages", `{"message":"oi"}`, "visitor"); rr.Code != http.StatusOK {
			t.Fatalf("submit %d: %d", i+1, rr.Code)
		}
	}
	rr := do(mux, http.MethodPost, "/api/chat/messages", `{"message":"oi"}`, "visitor")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After")
	}
}

func TestHandler_DeleteRequiresAdmin(t *testing.T) {
	mux, svc := newTestMux()

	m, err := svc.Submit(t.Context(), SubmitInput{UserID: "visitor_1", Message: "spam"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rr := do(mux, http.MethodDelete, "/api/chat/messages/"+m.ID, "", "visitor"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for visitor, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodDelete, "/api/chat/messages/"+m.ID, "", "admin"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodDelete, "/api/chat/messages/"+m.ID, "", "admin"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat, got %d", rr.Code)
	}
}

func TestHandler_HistoryBadLimit(t *testing.T) {
	mux, _ := newTestMux()
	if rr := do(mux, http.MethodGet, "/api/chat/messages?limit=abc", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
