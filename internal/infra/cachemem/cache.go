// Package cachemem holds the local fallback copy of recently issued proofs,
// the last resort of the verification cascade when both mirrors and the
// datastore are unreachable.
package cachemem

import (
	"context"
	"sync"
	"time"

	"certus/internal/domain"
)

type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	proof     domain.Proof
	expiresAt time.Time
	hasExpiry bool
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	c := New(ttl)
	if now != nil {
		c.now = now
	}
	return c
}

func (c *Cache) Get(ctx context.Context, hash string) (*domain.Proof, bool) {
	if c == nil {
		return nil, false
	}
	if ctx.Err() != nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	if entry.hasExpiry && c.now().After(entry.expiresAt) {
		delete(c.entries, hash)
		return nil, false
	}
	proof := entry.proof
	return &proof, true
}

func (c *Cache) Put(ctx context.Context, proof domain.Proof) {
	if c == nil || ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{proof: proof}
	if c.ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[proof.Hash] = entry
}
