package store

import (
	"context"
	"sync"
	"time"

	"github.com/rohansen856/database-layering/internal/model"
)

type cachedRecord struct {
	rec       model.Record
	expiresAt time.Time
}

// MemoryCache implements Cache with an in-process map. It stands in for the
// Redis L2 tier in tests and redis-less deployments; expiry is lazy.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]*cachedRecord
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]*cachedRecord),
	}
}

// Get retrieves a cached record
func (c *MemoryCache) Get(ctx context.Context, key string) (model.Record, error) {
	c.mu.RLock()
	item, exists := c.data[key]
	c.mu.RUnlock()

	if !exists {
		return model.Record{}, ErrNotFound
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return model.Record{}, ErrNotFound
	}
	return item.rec, nil
}

// Set caches a record with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, rec model.Record, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cachedRecord{
		rec:       rec,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a cached record
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	return nil
}

// Flush removes every cached record
func (c *MemoryCache) Flush(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(c.data))
	c.data = make(map[string]*cachedRecord)
	return n, nil
}

// Keys counts cached records, ignoring expired entries
func (c *MemoryCache) Keys(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var count int64
	for _, item := range c.data {
		if now.Before(item.expiresAt) {
			count++
		}
	}
	return count, nil
}

// Ping always succeeds for the in-memory cache
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}
