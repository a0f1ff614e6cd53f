package chat

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStore_RecentOrderedAndBounded(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	// Insert out of order: the store keeps timestamp order.
	for _, off := range []int{3, 1, 2, 0, 4} {
		if _, err := s.Insert(ctx, NewMessage{UserID: "u", UserName: "n", Message: "m", Now: base.Add(time.Duration(off) * time.Minute)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	for i, want := range []int{2, 3, 4} {
		if !got[i].CreatedAt.Equal(base.Add(time.Duration(want) * time.Minute)) {
			t.Fatalf("position %d has %v", i, got[i].CreatedAt)
		}
	}
}

func TestInMemoryStore_LimitClamped(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		_, _ = s.Insert(ctx, NewMessage{UserID: "u", Message: "m"})
	}
	got, _ := s.Recent(ctx, 500)
	if len(got) != DefaultHistoryLimit {
		t.Fatalf("expected clamp to %d, got %d", DefaultHistoryLimit, len(got))
	}
}

func TestInMemoryStore_DeleteMissing(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Delete(context.Background(), "nope"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
