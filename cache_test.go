package main

import (
	"context"
	"testing"
)

func TestMemoryCacheMissIsNotAnError(t *testing.T) {
	cache := NewMemoryCache()

	position, ok, err := cache.Get(context.Background(), "fresh-room")
	if err != nil {
		t.Fatalf("expected cache miss to not be an error, got %v", err)
	}
	if ok {
		t.Fatalf("expected no cached position for a fresh room, got %q", position)
	}
}

func TestMemoryCacheLastWriterWins(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	if err := cache.Put(ctx, "r1", "P1"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := cache.Put(ctx, "r1", "P2"); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	position, ok, err := cache.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || position != "P2" {
		t.Fatalf("expected latest write to win, got %q (ok=%v)", position, ok)
	}
}

func TestMemoryCacheKeysRoomsIndependently(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	if err := cache.Put(ctx, "r1", "P1"); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if _, ok, _ := cache.Get(ctx, "r2"); ok {
		t.Fatalf("expected no bleed between room keys")
	}
}
