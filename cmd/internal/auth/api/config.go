package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// AdminPasswordHash is the argon2id PHC string of the broker console password.
	// Empty disables /auth/admin/login.
	AdminPasswordHash string
	AdminDisplayName  string

	LoginIPMax    int
	LoginIPWindow time.Duration

	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration

	// VisitorIPMax caps visitor identities minted per IP within VisitorIPWindow.
	VisitorIPMax    int
	VisitorIPWindow time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:             envBool("SUPREME_TRUST_PROXY", false),
		MaxBodyBytes:           envInt64("SUPREME_AUTH_MAX_BODY_BYTES", 16<<10),
		AdminPasswordHash:      strings.TrimSpace(os.Getenv("SUPREME_ADMIN_PASSWORD_HASH")),
		AdminDisplayName:       strings.TrimSpace(os.Getenv("SUPREME_ADMIN_DISPLAY_NAME")),
		LoginIPMax:             envInt("SUPREME_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow:          envDuration("SUPREME_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
		LockoutShortThreshold:  envInt("SUPREME_AUTH_LOCKOUT_SHORT_THRESHOLD", 5),
		LockoutShortDuration:   envDuration("SUPREME_AUTH_LOCKOUT_SHORT_DURATION", 5*time.Minute),
		LockoutLongThreshold:   envInt("SUPREME_AUTH_LOCKOUT_LONG_THRESHOLD", 10),
		LockoutLongDuration:    envDuration("SUPREME_AUTH_LOCKOUT_LONG_DURATION", 30*time.Minute),
		LockoutSevereThreshold: envInt("SUPREME_AUTH_LOCKOUT_SEVERE_THRESHOLD", 20),
		LockoutSevereDuration:  envDuration("SUPREME_AUTH_LOCKOUT_SEVERE_DURATION", 2*time.Hour),
		VisitorIPMax:           envInt("SUPREME_AUTH_VISITOR_IP_MAX", 30),
		VisitorIPWindow:        envDuration("SUPREME_AUTH_VISITOR_IP_WINDOW", 10*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 16 << 10
	}
	return cfg
}

func (c Config) lockoutTiers() []lockoutTier {
	return []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
