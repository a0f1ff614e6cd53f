package app

import (
	"errors"
	"fmt"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/security/fingerprint"
)

// loadFingerprint builds the client-address hasher and enforces the startup key policy.
// With SUPREME_REQUIRE_FINGERPRINT_KEY=true a missing or short key fails startup instead of
// silently falling back to unkeyed SHA-256.
func loadFingerprint(cfg Config) (fingerprint.Hasher, error) {
	fp, err := fingerprint.FromEnv(cfg.RequireFingerprintKey)
	switch {
	case err == nil:
		return fp, nil
	case errors.Is(err, fingerprint.ErrKeyMissing):
		return fingerprint.Hasher{}, fmt.Errorf("security policy: SUPREME_REQUIRE_FINGERPRINT_KEY=true but %s is missing", fingerprint.EnvKey)
	case errors.Is(err, fingerprint.ErrKeyTooShort):
		return fingerprint.Hasher{}, fmt.Errorf("security policy: %s is too short (min %d bytes)", fingerprint.EnvKey, fingerprint.MinKeyBytes)
	default:
		return fingerprint.Hasher{}, err
	}
}
