package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewHandler_Formats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	slog.New(newHandler(&jsonBuf, "info", "json", false)).Info("chat.submit.ok", "user_id", "u1")
	var rec map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &rec); err != nil {
		t.Fatalf("json output not decodable: %v (%q)", err, jsonBuf.String())
	}
	if rec["msg"] != "chat.submit.ok" || rec["user_id"] != "u1" {
		t.Fatalf("unexpected record: %v", rec)
	}

	var prettyBuf bytes.Buffer
	slog.New(newHandler(&prettyBuf, "info", "pretty", false)).Info("chat.submit.ok", "user_id", "u1")
	out := prettyBuf.String()
	if !strings.Contains(out, "msg=chat.submit.ok") || !strings.Contains(out, "user_id=u1") {
		t.Fatalf("unexpected pretty output: %q", out)
	}

	var quiet bytes.Buffer
	slog.New(newHandler(&quiet, "warn", "pretty", false)).Info("dropped")
	if quiet.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %q", quiet.String())
	}
}

func TestNewHandler_RedactsSecrets(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "pretty"} {
		var buf bytes.Buffer
		log := slog.New(newHandler(&buf, "info", format, false))
		log.Info("auth.visitor.issued", "access_token", "v4.public.abc", "user_id", "visitor_01j", slog.Group("req", "authorization", "Bearer xyz"))

		out := buf.String()
		if strings.Contains(out, "v4.public.abc") || strings.Contains(out, "Bearer xyz") {
			t.Fatalf("%s: secret leaked: %s", format, out)
		}
		if !strings.Contains(out, "[redacted]") || !strings.Contains(out, "visitor_01j") {
			t.Fatalf("%s: unexpected output: %s", format, out)
		}
	}
}
