package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// NewLogger creates the process logger and installs it as the slog default.
// format "pretty" selects the key=value console handler; anything else is JSON.
func NewLogger(level, format string, color bool) *slog.Logger {
	return NewLoggerTo(os.Stdout, level, format, color)
}

// NewLoggerTo is NewLogger writing to w. The CLI tools log to stderr with it.
func NewLoggerTo(w io.Writer, level, format string, color bool) *slog.Logger {
	log := slog.New(newHandler(w, level, format, color))
	slog.SetDefault(log)
	return log
}

func newHandler(w io.Writer, level, format string, color bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(level),
		AddSource:   true,
		ReplaceAttr: redactSecrets,
	}
	if strings.EqualFold(strings.TrimSpace(format), "pretty") {
		return newPrettyHandler(w, opts, color)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const redacted = "[redacted]"

// isSecretKey matches attribute keys that may carry bearer tokens or credentials.
func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range []string{"token", "password", "secret", "authorization", "api_key"} {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && isSecretKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
