package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for token issuance.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// VisitorTTL is the lifetime of chat visitor tokens.
	VisitorTTL time.Duration

	// AdminTTL is the lifetime of broker console tokens.
	AdminTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key
	// used to sign PASETO v4.public access tokens.
	PasetoV4SecretKeyHex string

	// EphemeralKey allows starting without a configured key (development only).
	// Tokens then die with the process.
	EphemeralKey bool
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		Issuer:     "supreme",
		VisitorTTL: 24 * time.Hour,
		AdminTTL:   8 * time.Hour,
		ClockSkew:  30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required (unless SUPREME_AUTH_EPHEMERAL_KEY=true):
//   - SUPREME_PASETO_V4_SECRET_KEY_HEX
//
// Optional (durations must be valid Go duration strings):
//   - SUPREME_AUTH_ISSUER
//   - SUPREME_AUTH_VISITOR_TTL
//   - SUPREME_AUTH_ADMIN_TTL
//   - SUPREME_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("SUPREME_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	var err error
	if cfg.VisitorTTL, err = positiveDuration("SUPREME_AUTH_VISITOR_TTL", cfg.VisitorTTL); err != nil {
		return Config{}, err
	}
	if cfg.AdminTTL, err = positiveDuration("SUPREME_AUTH_ADMIN_TTL", cfg.AdminTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("SUPREME_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("SUPREME_AUTH_EPHEMERAL_KEY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.EphemeralKey = b
	}

	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("SUPREME_PASETO_V4_SECRET_KEY_HEX"))
	if cfg.PasetoV4SecretKeyHex == "" && !cfg.EphemeralKey {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, ErrConfig
	}
	return d, nil
}
