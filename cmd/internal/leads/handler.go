package leads

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/security/fingerprint"
)

const maxCaptureBodyBytes = 16 << 10

// Authenticator resolves the bearer identity of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (session.AccessClaims, error)
}

// Handler exposes lead capture (public) and listing (admin).
type Handler struct {
	log        *slog.Logger
	svc        *Service
	auth       Authenticator
	fp         fingerprint.Hasher
	trustProxy bool
}

// NewHandler constructs the leads HTTP handler.
func NewHandler(log *slog.Logger, svc *Service, auth Authenticator, fp fingerprint.Hasher, trustProxy bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, auth: auth, fp: fp, trustProxy: trustProxy}
}

type captureResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type listResponse struct {
	Leads []Lead `json:"leads"`
}

// Register wires lead routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/leads", h.handleLeads)
}

func (h *Handler) handleLeads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCapture(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		httpx.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := httpx.DecodeJSON(w, r, maxCaptureBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := ""
	if ip := httpx.ClientIP(r, h.trustProxy); ip != nil {
		key = h.fp.Sum(ip.String())
	}

	l, err := h.svc.Capture(r.Context(), key, req)
	if err != nil {
		var verr ValidationError
		var rl RateLimitError
		switch {
		case errors.As(err, &verr):
			details, _ := json.Marshal(verr.Fields)
			httpx.WriteErrorDetails(w, http.StatusBadRequest, "invalid lead", string(details))
		case errors.As(err, &rl):
			if rl.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int((rl.RetryAfter+time.Second-1)/time.Second)))
			}
			httpx.WriteError(w, http.StatusTooManyRequests, "too many requests, please try again later")
		default:
			h.log.Error("leads.capture.fail", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to save contact request")
		}
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, captureResponse{Success: true, ID: l.ID})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !claims.IsAdmin() {
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	out, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("leads.list.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load leads")
		return
	}
	if out == nil {
		out = []Lead{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Leads: out})
}
