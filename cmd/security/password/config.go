package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Params controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies passwords with fixed Argon2id parameters.
type Hasher struct {
	Params    Params
	MinLength int
	MaxLength int
}

// DefaultHasher returns the baseline used for the console password.
func DefaultHasher() Hasher {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Hasher{
		Params: Params{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		MinLength: 12,
		MaxLength: 256,
	}
}

// HasherFromEnv loads Argon2id cost overrides.
//
// Env surface:
// - SUPREME_ARGON2_MEMORY_KIB
// - SUPREME_ARGON2_ITERATIONS
// - SUPREME_ARGON2_PARALLELISM
func HasherFromEnv() (Hasher, error) {
	h := DefaultHasher()

	if v, ok := os.LookupEnv("SUPREME_ARGON2_MEMORY_KIB"); ok {
		u, err := parseU32(v, 8*1024, 1024*1024)
		if err != nil {
			return Hasher{}, fmt.Errorf("SUPREME_ARGON2_MEMORY_KIB: %w", err)
		}
		h.Params.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("SUPREME_ARGON2_ITERATIONS"); ok {
		u, err := parseU32(v, 1, 20)
		if err != nil {
			return Hasher{}, fmt.Errorf("SUPREME_ARGON2_ITERATIONS: %w", err)
		}
		h.Params.Iterations = u
	}

	if v, ok := os.LookupEnv("SUPREME_ARGON2_PARALLELISM"); ok {
		u, err := parseU32(v, 1, math.MaxUint8)
		if err != nil {
			return Hasher{}, fmt.Errorf("SUPREME_ARGON2_PARALLELISM: %w", err)
		}
		h.Params.Parallelism = uint8(u) // #nosec G115 -- bounded by parseU32.
	}

	return h, nil
}

// Validate checks the length policy, counting runes.
func (h Hasher) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	if n < h.MinLength {
		return ErrPasswordTooShort
	}
	if h.MaxLength > 0 && n > h.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

func parseU32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
