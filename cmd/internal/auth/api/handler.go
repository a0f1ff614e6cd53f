package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/httpx"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/ratelimit"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/security/fingerprint"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/security/password"
)

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Service
	hasher   password.Hasher
	fp       fingerprint.Hasher
	metrics  *metrics.Metrics

	loginFailures *failureLog
	visitorLimit  *ratelimit.FixedWindow

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics records login outcomes.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithLimitStore shares visitor issuance counters through store (e.g. Redis).
func WithLimitStore(store ratelimit.Store) HandlerOption {
	return func(h *Handler) {
		if store == nil {
			return
		}
		h.visitorLimit = ratelimit.NewFixedWindow(store, "auth.visitor", h.cfg.VisitorIPMax, h.cfg.VisitorIPWindow)
	}
}

// WithFingerprint keys IP-derived identifiers with a server secret.
func WithFingerprint(fp fingerprint.Hasher) HandlerOption {
	return func(h *Handler) { h.fp = fp }
}

// WithPasswordHasher overrides the argon2id bounds used to verify the console password.
func WithPasswordHasher(hs password.Hasher) HandlerOption {
	return func(h *Handler) { h.hasher = hs }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}

	horizon := cfg.LoginIPWindow
	if cfg.LockoutSevereDuration > horizon {
		horizon = cfg.LockoutSevereDuration
	}

	h := &Handler{
		log:           log,
		cfg:           cfg,
		sessions:      sessions,
		hasher:        password.DefaultHasher(),
		fp:            fingerprint.New(nil),
		loginFailures: newFailureLog(horizon),
		visitorLimit:  ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), "auth.visitor", cfg.VisitorIPMax, cfg.VisitorIPWindow),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/visitor", h.handleVisitor)
	mux.HandleFunc("/auth/admin/login", h.handleAdminLogin)
	mux.HandleFunc("/auth/me", h.handleMe)
}

func (h *Handler) handleVisitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, http.MethodPost)
		return
	}

	var req visitorRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	now := h.now()
	ip := httpx.ClientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	if key := h.ipKey(ip); key != "" {
		d, err := h.visitorLimit.Allow(ctx, key, now)
		switch {
		case err != nil:
			// Limiter outages must not lock visitors out of the chat.
			h.log.Warn("auth.visitor.limiter.fail", "err", err)
		case !d.Allowed:
			writeRateLimited(w, d.RetryAfter)
			return
		}
	}

	issued, err := h.sessions.IssueVisitor(now, req.DisplayName)
	if err != nil {
		h.log.Error("auth.visitor.issue.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.auditVisitorIssued(ctx, ip, ua, issued.UserID)
	httpx.WriteJSON(w, http.StatusCreated, toTokenResponse(issued))
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, http.MethodPost)
		return
	}
	if h.cfg.AdminPasswordHash == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "admin login disabled")
		return
	}

	var req adminLoginRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "password is required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := httpx.ClientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	key := h.ipKey(ip)

	if blocked, retryAfter := h.checkLoginThrottle(key, now); blocked {
		h.metrics.AdminLogin("rate_limited")
		h.auditLoginRateLimited(ctx, ip, ua, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	ok, err := h.hasher.Verify(h.cfg.AdminPasswordHash, req.Password)
	if err != nil {
		// Only a malformed configured hash gets here.
		h.log.Error("auth.admin_login.verify.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		h.loginFailures.record(key, now)
		h.metrics.AdminLogin("invalid")
		h.auditLoginFailed(ctx, ip, ua, "bad_password")
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.loginFailures.reset(key)
	issued, err := h.sessions.IssueAdmin(now, h.cfg.AdminDisplayName)
	if err != nil {
		h.log.Error("auth.admin_login.issue.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.metrics.AdminLogin("ok")
	h.auditLoginSuccess(ctx, ip, ua)
	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(issued))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.MethodNotAllowed(w, http.MethodGet)
		return
	}

	claims, err := h.Authenticate(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		User:      toUserResponse(claims),
		ExpiresAt: claims.ExpiresAt,
	})
}

// Authenticate validates the request bearer token.
func (h *Handler) Authenticate(r *http.Request) (session.AccessClaims, error) {
	tok := httpx.BearerToken(r)
	if tok == "" {
		return session.AccessClaims{}, session.ErrInvalidToken
	}
	return h.sessions.ValidateAccessToken(tok, h.now())
}

// SessionService returns the underlying session service.
func (h *Handler) SessionService() *session.Service {
	if h == nil {
		return nil
	}
	return h.sessions
}

// claimsKey is the context key for authenticated claims.
type claimsKey struct{}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, c session.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns claims stored by RequireAuth.
func ClaimsFrom(ctx context.Context) (session.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(session.AccessClaims)
	return c, ok
}

// RequireAuth rejects requests without a valid bearer token. With admin set, the token
// must also carry the console role.
func (h *Handler) RequireAuth(admin bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.Authenticate(r)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if admin && !claims.IsAdmin() {
			httpx.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func toUserResponse(c session.AccessClaims) userResponse {
	return userResponse{ID: c.UserID, DisplayName: c.DisplayName, Role: string(c.Role)}
}

func toTokenResponse(issued session.Issued) tokenResponse {
	return tokenResponse{
		User: userResponse{
			ID:          issued.UserID,
			DisplayName: issued.DisplayName,
			Role:        string(issued.Role),
		},
		AccessToken: issued.AccessToken,
		ExpiresAt:   issued.ExpiresAt,
	}
}
