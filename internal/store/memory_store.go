package store

import (
	"context"
	"sync"
	"time"

	"github.com/rohansen856/database-layering/internal/model"
)

// MemoryStore implements Store with an in-process map. Used by the memory
// partition driver and as the deterministic store in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]model.Record),
	}
}

// Put upserts a record, preserving created_at across updates
func (s *MemoryStore) Put(ctx context.Context, key, value string) (model.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.records[key]

	rec := model.Record{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ok {
		rec.CreatedAt = existing.CreatedAt
	}
	s.records[key] = rec

	return rec, !ok, nil
}

// Get retrieves a record by key
func (s *MemoryStore) Get(ctx context.Context, key string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	return rec, nil
}

// Count returns the number of records
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// PoolStats returns zeros; there is no connection pool
func (s *MemoryStore) PoolStats() PoolStats {
	return PoolStats{}
}

// Close is a no-op
func (s *MemoryStore) Close() {}
