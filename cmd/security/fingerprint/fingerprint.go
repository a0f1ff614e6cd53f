package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// EnvKey is the env var holding the HMAC secret.
// #nosec G101 -- not a credential; it's an environment variable name.
const EnvKey = "SUPREME_FINGERPRINT_KEY"

// MinKeyBytes is the minimum accepted secret size when a key is required.
const MinKeyBytes = 32

// Hasher produces fingerprints. The zero value uses plain SHA-256.
type Hasher struct {
	key []byte
}

// New returns a Hasher keyed with key (nil key means SHA-256 only).
func New(key []byte) Hasher {
	if len(key) == 0 {
		return Hasher{}
	}
	return Hasher{key: append([]byte(nil), key...)}
}

// FromEnv builds a Hasher from SUPREME_FINGERPRINT_KEY.
// When require is true a missing or short key is an error.
func FromEnv(require bool) (Hasher, error) {
	raw := strings.TrimSpace(os.Getenv(EnvKey))
	if raw == "" {
		if require {
			return Hasher{}, ErrKeyMissing
		}
		return Hasher{}, nil
	}
	if require && len(raw) < MinKeyBytes {
		return Hasher{}, ErrKeyTooShort
	}
	return New([]byte(raw)), nil
}

// Keyed reports whether the Hasher uses HMAC.
func (h Hasher) Keyed() bool { return len(h.key) > 0 }

// Sum returns the 64-char hex fingerprint of value.
func (h Hasher) Sum(value string) string {
	if len(h.key) == 0 {
		sum := sha256.Sum256([]byte(value))
		return hex.EncodeToString(sum[:])
	}
	m := hmac.New(sha256.New, h.key)
	_, _ = m.Write([]byte(value))
	return hex.EncodeToString(m.Sum(nil))
}

// Short returns the first 12 hex chars of Sum, for log fields.
func (h Hasher) Short(value string) string {
	return h.Sum(value)[:12]
}
