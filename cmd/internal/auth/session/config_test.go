package session

import (
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func TestLoadConfigFromEnv_MissingSecretKey(t *testing.T) {
	t.Setenv("SUPREME_PASETO_V4_SECRET_KEY_HEX", "")
	t.Setenv("SUPREME_AUTH_EPHEMERAL_KEY", "")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig on missing secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_EphemeralKey(t *testing.T) {
	t.Setenv("SUPREME_PASETO_V4_SECRET_KEY_HEX", "")
	t.Setenv("SUPREME_AUTH_EPHEMERAL_KEY", "true")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewPasetoV4PublicManager(cfg); err != nil {
		t.Fatalf("ephemeral manager: %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	secret := paseto.NewV4AsymmetricSecretKey()
	t.Setenv("SUPREME_PASETO_V4_SECRET_KEY_HEX", secret.ExportHex())
	t.Setenv("SUPREME_AUTH_VISITOR_TTL", "-5m")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig for negative duration, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	secret := paseto.NewV4AsymmetricSecretKey()
	t.Setenv("SUPREME_PASETO_V4_SECRET_KEY_HEX", secret.ExportHex())
	t.Setenv("SUPREME_AUTH_ISSUER", "supreme-test")
	t.Setenv("SUPREME_AUTH_VISITOR_TTL", "12h")
	t.Setenv("SUPREME_AUTH_ADMIN_TTL", "2h")
	t.Setenv("SUPREME_AUTH_CLOCK_SKEW", "20s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Issuer != "supreme-test" {
		t.Fatalf("issuer mismatch: %q", cfg.Issuer)
	}
	if cfg.VisitorTTL != 12*time.Hour || cfg.AdminTTL != 2*time.Hour {
		t.Fatalf("ttl mismatch: visitor=%v admin=%v", cfg.VisitorTTL, cfg.AdminTTL)
	}
	if cfg.ClockSkew != 20*time.Second {
		t.Fatalf("clock skew mismatch: %v", cfg.ClockSkew)
	}
}

func TestNewPasetoV4PublicManager_BadHex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = "zz"
	if _, err := NewPasetoV4PublicManager(cfg); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
