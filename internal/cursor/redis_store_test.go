package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis cursor store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestGetUnknownCursorIsZero(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	watermark, err := store.Get(context.Background(), "mem-1", "thr-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !watermark.IsZero() {
		t.Errorf("expected zero watermark for unopened thread, got %v", watermark)
	}
}

func TestAdvanceAndGet(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	mark := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Advance(ctx, "mem-1", "thr-1", mark); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	watermark, err := store.Get(ctx, "mem-1", "thr-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !watermark.Equal(mark) {
		t.Errorf("expected watermark %v, got %v", mark, watermark)
	}
}

func TestAdvanceIsMonotonic(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	later := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := store.Advance(ctx, "mem-1", "thr-1", later); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := store.Advance(ctx, "mem-1", "thr-1", earlier); err != nil {
		t.Fatalf("Advance with stale watermark failed: %v", err)
	}

	watermark, err := store.Get(ctx, "mem-1", "thr-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !watermark.Equal(later) {
		t.Errorf("stale advance must not regress watermark: got %v, want %v", watermark, later)
	}
}

func TestAdvanceSameValueIsNoOp(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	mark := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Advance(ctx, "mem-1", "thr-1", mark); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := store.Advance(ctx, "mem-1", "thr-1", mark); err != nil {
		t.Fatalf("repeat Advance failed: %v", err)
	}

	watermark, err := store.Get(ctx, "mem-1", "thr-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !watermark.Equal(mark) {
		t.Errorf("expected watermark %v, got %v", mark, watermark)
	}
}

func TestAllReturnsEveryThread(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := store.Advance(ctx, "mem-1", "thr-1", base); err != nil {
		t.Fatalf("Advance thr-1 failed: %v", err)
	}
	if err := store.Advance(ctx, "mem-1", "thr-2", base.Add(time.Minute)); err != nil {
		t.Fatalf("Advance thr-2 failed: %v", err)
	}
	if err := store.Advance(ctx, "mem-2", "thr-1", base.Add(time.Hour)); err != nil {
		t.Fatalf("Advance for mem-2 failed: %v", err)
	}

	cursors, err := store.All(ctx, "mem-1")
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(cursors) != 2 {
		t.Fatalf("expected 2 cursors for mem-1, got %d", len(cursors))
	}
	if !cursors["thr-1"].Equal(base) {
		t.Errorf("thr-1 watermark: got %v, want %v", cursors["thr-1"], base)
	}
	if !cursors["thr-2"].Equal(base.Add(time.Minute)) {
		t.Errorf("thr-2 watermark: got %v, want %v", cursors["thr-2"], base.Add(time.Minute))
	}
}
