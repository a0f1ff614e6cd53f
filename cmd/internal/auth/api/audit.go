package authapi

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Auth audit trail goes to the structured log. IPs are fingerprinted so raw addresses do
// not land in log storage.

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, reason string) {
	h.audit(ctx, slog.LevelWarn, "auth.admin_login.failed", ip, ua, slog.String("reason", reason))
}

func (h *Handler) auditLoginSuccess(ctx context.Context, ip net.IP, ua string) {
	h.audit(ctx, slog.LevelInfo, "auth.admin_login.success", ip, ua)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua string, retryAfter time.Duration) {
	h.audit(ctx, slog.LevelWarn, "auth.admin_login.rate_limited", ip, ua,
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())))
}

func (h *Handler) auditVisitorIssued(ctx context.Context, ip net.IP, ua, userID string) {
	h.audit(ctx, slog.LevelDebug, "auth.visitor.issued", ip, ua, slog.String("user_id", userID))
}

func (h *Handler) audit(ctx context.Context, level slog.Level, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("ip_fp", h.ipKey(ip)))
	if ua = strings.TrimSpace(ua); ua != "" {
		all = append(all, slog.String("ua", ua))
	}
	all = append(all, attrs...)
	h.log.LogAttrs(ctx, level, action, all...)
}

// ipKey is the throttling and logging key for a client address.
func (h *Handler) ipKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return h.fp.Short(ip.String())
}
