package cachemem

import (
	"context"
	"testing"
	"time"

	"certus/internal/domain"
)

func TestCachePutGet(t *testing.T) {
	cache := New(0)
	proof := domain.Proof{
		ID:   "01HZX0000000000000000000g1",
		Hash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	}
	cache.Put(context.Background(), proof)

	got, ok := cache.Get(context.Background(), proof.Hash)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.ID != proof.ID {
		t.Fatalf("expected proof %s, got %s", proof.ID, got.ID)
	}

	if _, ok := cache.Get(context.Background(), "deadbeef"); ok {
		t.Fatalf("expected miss for unknown hash")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewWithClock(time.Minute, func() time.Time { return clock })

	proof := domain.Proof{
		ID:   "01HZX0000000000000000000g2",
		Hash: "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae",
	}
	cache.Put(context.Background(), proof)

	if _, ok := cache.Get(context.Background(), proof.Hash); !ok {
		t.Fatalf("expected hit inside ttl")
	}

	clock = clock.Add(time.Minute + time.Second)
	if _, ok := cache.Get(context.Background(), proof.Hash); ok {
		t.Fatalf("expected expiry after ttl")
	}

	cache.Put(context.Background(), proof)
	if _, ok := cache.Get(context.Background(), proof.Hash); !ok {
		t.Fatalf("expected re-put to refresh the entry")
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewWithClock(0, func() time.Time { return clock })

	proof := domain.Proof{
		ID:   "01HZX0000000000000000000g3",
		Hash: "fcde2b2edba56bf408601fb721fe9b5c338d10ee429ea04fae5511b68fbf8fb9",
	}
	cache.Put(context.Background(), proof)

	clock = clock.Add(365 * 24 * time.Hour)
	if _, ok := cache.Get(context.Background(), proof.Hash); !ok {
		t.Fatalf("expected entry without ttl to survive")
	}
}

func TestCacheHonorsCancelledContext(t *testing.T) {
	cache := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proof := domain.Proof{
		ID:   "01HZX0000000000000000000g4",
		Hash: "ef2d127de37b942baad06145e54b0c619a1f22327b2ebbcfbec78f5564afe39d",
	}
	cache.Put(ctx, proof)
	if _, ok := cache.Get(context.Background(), proof.Hash); ok {
		t.Fatalf("expected put with cancelled context to be ignored")
	}

	cache.Put(context.Background(), proof)
	if _, ok := cache.Get(ctx, proof.Hash); ok {
		t.Fatalf("expected get with cancelled context to miss")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	cache.Put(context.Background(), domain.Proof{Hash: "aa"})
	if _, ok := cache.Get(context.Background(), "aa"); ok {
		t.Fatalf("expected nil cache to miss")
	}
}
