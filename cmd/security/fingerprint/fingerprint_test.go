package fingerprint

import "testing"

func TestSum_KeyedDiffersFromPlain(t *testing.T) {
	t.Parallel()

	plain := New(nil)
	keyed := New([]byte("0123456789abcdef0123456789abcdef"))

	if plain.Keyed() || !keyed.Keyed() {
		t.Fatalf("unexpected keyed flags")
	}
	a := plain.Sum("203.0.113.9")
	b := keyed.Sum("203.0.113.9")
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("unexpected digest lengths: %d %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("keyed digest must differ from plain digest")
	}
	if keyed.Sum("203.0.113.9") != b {
		t.Fatalf("digest must be stable")
	}
	if got := keyed.Short("203.0.113.9"); got != b[:12] {
		t.Fatalf("Short=%q want %q", got, b[:12])
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvKey, "")
	if _, err := FromEnv(true); err != ErrKeyMissing {
		t.Fatalf("expected ErrKeyMissing, got %v", err)
	}
	if h, err := FromEnv(false); err != nil || h.Keyed() {
		t.Fatalf("expected plain hasher, got keyed=%v err=%v", h.Keyed(), err)
	}

	t.Setenv(EnvKey, "short")
	if _, err := FromEnv(true); err != ErrKeyTooShort {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}

	t.Setenv(EnvKey, "0123456789abcdef0123456789abcdef")
	h, err := FromEnv(true)
	if err != nil || !h.Keyed() {
		t.Fatalf("expected keyed hasher, err=%v", err)
	}
}
