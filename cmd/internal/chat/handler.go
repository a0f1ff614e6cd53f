package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
)

const maxSubmitBodyBytes = 8 << 10

// Authenticator resolves the bearer identity of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (session.AccessClaims, error)
}

// Handler exposes the chat API.
type Handler struct {
	log  *slog.Logger
	svc  *Service
	auth Authenticator
}

// NewHandler constructs the chat HTTP handler.
func NewHandler(log *slog.Logger, svc *Service, auth Authenticator) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, auth: auth}
}

type submitRequest struct {
	Message  string `json:"message"`
	UserName string `json:"user_name"`
}

type submitResponse struct {
	Success bool    `json:"success"`
	Message Message `json:"message"`
}

type historyResponse struct {
	Messages []Message `json:"messages"`
}

// Register wires chat routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat/messages", h.handleCollection)
	mux.HandleFunc("/api/chat/messages/", h.handleItem)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleHistory(w, r)
	case http.MethodPost:
		h.handleSubmit(w, r)
	default:
		httpx.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	msgs, err := h.svc.History(r.Context(), limit)
	if err != nil {
		h.log.Error("chat.history.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}
	httpx.WriteJSON(w, http.StatusOK, historyResponse{Messages: msgs})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitRequest
	if err := httpx.DecodeJSON(w, r, maxSubmitBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := req.UserName
	if strings.TrimSpace(name) == "" {
		name = claims.DisplayName
	}

	m, err := h.svc.Submit(r.Context(), SubmitInput{
		UserID:   claims.UserID,
		UserName: name,
		Message:  req.Message,
	})
	if err != nil {
		h.writeServiceError(r.Context(), w, "chat.submit", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, submitResponse{Success: true, Message: m})
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httpx.MethodNotAllowed(w, http.MethodDelete)
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

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/chat/messages/"), "/")
	if id == "" || strings.Contains(id, "/") {
		httpx.WriteError(w, http.StatusNotFound, "message not found")
		return
	}

	if _, err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeServiceError(r.Context(), w, "chat.delete", err)
		return
	}
	h.log.Info("chat.delete.ok", "message_id", id, "by", claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors to status codes in one place.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var opErr OpError
	switch {
	case errors.Is(err, ErrRateLimited):
		if d, ok := retryAfter(err); ok && d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int((d+time.Second-1)/time.Second)))
		}
		httpx.WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please wait before sending more messages.")
	case errors.Is(err, ErrInvalidInput) && errors.As(err, &opErr):
		httpx.WriteError(w, http.StatusBadRequest, opErr.Msg)
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "message not found")
	default:
		h.log.ErrorContext(ctx, op+".fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to send message")
	}
}
