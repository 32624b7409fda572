package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type tagRow struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	s.Set(ctx, "k", []byte("v"), time.Minute)
	if b, ok, _ := s.Get(ctx, "k"); !ok || string(b) != "v" {
		t.Fatalf("Expected hit, got %q %v", b, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Set(ctx, "a", []byte("1"), 0)
	s.Set(ctx, "b", []byte("2"), 0)

	s.Delete(ctx, "a", "b")
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Error("Expected a to be deleted")
	}
	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Error("Expected b to be deleted")
	}
}

func TestTagCacheRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewTagCache(NewMemoryStore(), time.Minute, quiet)

	var rows []tagRow
	if c.Load(ctx, 1, &rows) {
		t.Fatal("Expected miss on empty cache")
	}

	c.Save(ctx, 1, []tagRow{{Name: "go", Count: 2}})
	if !c.Load(ctx, 1, &rows) || len(rows) != 1 || rows[0].Name != "go" {
		t.Fatalf("Expected cached rows, got %v", rows)
	}

	var other []tagRow
	if c.Load(ctx, 2, &other) {
		t.Error("Expected owners to have separate entries")
	}

	c.InvalidateOwner(ctx, 1)
	if c.Load(ctx, 1, &rows) {
		t.Error("Expected miss after invalidation")
	}
}

func TestTagCacheIgnoresCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, tagKey(7), []byte("{not json"), 0)
	c := NewTagCache(store, time.Minute, quiet)

	var rows []tagRow
	if c.Load(ctx, 7, &rows) {
		t.Error("Expected corrupt entry to be treated as a miss")
	}
}

func TestConnectFallsBackToMemory(t *testing.T) {
	store, closeFn := Connect(context.Background(), "", "", 0, quiet)
	defer closeFn()
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected MemoryStore without redis address, got %T", store)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, closeFn = Connect(ctx, "127.0.0.1:1", "", 0, quiet)
	defer closeFn()
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected MemoryStore when redis is unreachable, got %T", store)
	}
}
