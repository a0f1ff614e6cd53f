package chat

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageChars caps a message body after sanitization.
	MaxMessageChars = 1000
	// MaxDisplayNameChars caps a display name after sanitization.
	MaxDisplayNameChars = 50

	defaultDisplayName = "Visitante"
)

var angleStripper = strings.NewReplacer("<", "", ">", "")

// Sanitize strips angle brackets, trims, and truncates to max characters (runes).
func Sanitize(s string, max int) string {
	s = strings.TrimSpace(angleStripper.Replace(s))
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return s
}

// SanitizeMessage applies the message body rules.
func SanitizeMessage(s string) string { return Sanitize(s, MaxMessageChars) }

// SanitizeDisplayName applies the display name rules. Empty names become "Visitante".
func SanitizeDisplayName(s string) string {
	if s = Sanitize(s, MaxDisplayNameChars); s == "" {
		return defaultDisplayName
	}
	return s
}
