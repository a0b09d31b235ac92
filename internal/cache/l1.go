// Package cache implements the tiered read cache: a bounded in-process L1
// in front of an optional networked L2, with promotion from L2 into L1 on
// read.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/model"
)

type l1Entry struct {
	rec       model.Record
	expiresAt time.Time
}

// L1 is the in-process tier: a mutex-guarded map bounded by entry count,
// with a fixed per-entry TTL. Expired entries are dropped lazily on read
// and swept by a background cleanup loop.
type L1 struct {
	mu         sync.RWMutex
	data       map[string]*l1Entry
	maxEntries int
	ttl        time.Duration
	evictions  int64
	logger     *zap.Logger
}

// NewL1 creates the in-process cache tier.
func NewL1(maxEntries int, ttl time.Duration, logger *zap.Logger) *L1 {
	c := &L1{
		data:       make(map[string]*l1Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		logger:     logger,
	}

	// Start cleanup goroutine
	go c.cleanup()

	return c
}

// Get returns the cached record if present and unexpired.
func (c *L1) Get(key string) (model.Record, bool) {
	c.mu.RLock()
	entry, exists := c.data[key]
	c.mu.RUnlock()

	if !exists {
		return model.Record{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.data[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return model.Record{}, false
	}
	return entry.rec, true
}

// Set stores a record with a fresh TTL, evicting if the tier is full.
func (c *L1) Set(key string, rec model.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxEntries {
		c.evictOne()
	}

	c.data[key] = &l1Entry{
		rec:       rec,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// evictOne must be called with the write lock held. Expired entries go
// first; otherwise the entry closest to expiry is dropped.
func (c *L1) evictOne() {
	now := time.Now()
	var victim string
	var victimExpiry time.Time

	for k, v := range c.data {
		if now.After(v.expiresAt) {
			delete(c.data, k)
			c.evictions++
			return
		}
		if victim == "" || v.expiresAt.Before(victimExpiry) {
			victim = k
			victimExpiry = v.expiresAt
		}
	}

	if victim != "" {
		delete(c.data, victim)
		c.evictions++
	}
}

// Delete removes a cached record.
func (c *L1) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// Purge empties the tier and returns how many entries were dropped.
func (c *L1) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.data)
	c.data = make(map[string]*l1Entry)
	return n
}

// Len returns the current entry count.
func (c *L1) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// MaxEntries returns the configured capacity.
func (c *L1) MaxEntries() int {
	return c.maxEntries
}

// Evictions returns how many entries were evicted to make room.
func (c *L1) Evictions() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictions
}

// cleanup periodically removes expired entries
func (c *L1) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, entry := range c.data {
			if now.After(entry.expiresAt) {
				delete(c.data, key)
			}
		}
		c.mu.Unlock()
	}
}
