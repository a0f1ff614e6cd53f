package whatsapp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
)

const maxSendBodyBytes = 32 << 10

// Authenticator resolves the bearer identity of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (session.AccessClaims, error)
}

// Handler exposes POST /api/whatsapp/send to admins.
type Handler struct {
	log     *slog.Logger
	sender  Sender
	auth    Authenticator
	metrics *metrics.Metrics
}

// NewHandler constructs the handler. sender nil answers 503.
func NewHandler(log *slog.Logger, sender Sender, auth Authenticator, m *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sender: sender, auth: auth, metrics: m}
}

type sendResponseBody struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// Register wires the send route onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/whatsapp/send", h.handleSend)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, http.MethodPost)
		return
	}

	claims, err := h.auth.Authenticate(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !claims.IsAdmin() {
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}
	if h.sender == nil {
		h.metrics.WhatsAppSend("disabled")
		httpx.WriteError(w, http.StatusServiceUnavailable, "whatsapp integration is not configured")
		return
	}

	var req SendRequest
	if err := httpx.DecodeJSON(w, r, maxSendBodyBytes, &req); err != nil {
		httpx.WriteErrorDetails(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	// Validate here too so the caller gets per-field details.
	if verr := req.Normalize().Validate(); verr != nil {
		h.metrics.WhatsAppSend("invalid")
		details, _ := json.Marshal(fieldErrors(verr))
		httpx.WriteErrorDetails(w, http.StatusBadRequest, "invalid request", string(details))
		return
	}

	id, err := h.sender.Send(r.Context(), req)
	if err != nil {
		h.writeSendError(w, claims.UserID, err)
		return
	}

	h.metrics.WhatsAppSend("ok")
	h.log.Info("whatsapp.send.ok", "admin_id", claims.UserID, "message_id", id)
	httpx.WriteJSON(w, http.StatusOK, sendResponseBody{Success: true, MessageID: id})
}

func (h *Handler) writeSendError(w http.ResponseWriter, adminID string, err error) {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNotConfigured):
		h.metrics.WhatsAppSend("disabled")
		httpx.WriteError(w, http.StatusServiceUnavailable, "whatsapp integration is not configured")
	case errors.Is(err, ErrInvalidInput):
		h.metrics.WhatsAppSend("invalid")
		httpx.WriteErrorDetails(w, http.StatusBadRequest, "invalid request", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
	case errors.As(err, &apiErr):
		h.metrics.WhatsAppSend("upstream_error")
		h.log.Warn("whatsapp.send.rejected", "admin_id", adminID, "status", apiErr.Status, "code", apiErr.Code)
		httpx.WriteErrorDetails(w, http.StatusBadGateway, "failed to send WhatsApp message", apiErr.Message)
	default:
		h.metrics.WhatsAppSend("error")
		h.log.Error("whatsapp.send.fail", "admin_id", adminID, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "failed to send WhatsApp message")
	}
}
