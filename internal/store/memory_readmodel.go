package store

import (
	"context"
	"sync"
	"time"

	"github.com/rohansen856/database-layering/internal/model"
)

// MemoryReadModel implements ReadModel with an in-process map
type MemoryReadModel struct {
	mu      sync.RWMutex
	records map[string]model.ReadModelRecord
}

// NewMemoryReadModel creates an empty in-memory read model
func NewMemoryReadModel() *MemoryReadModel {
	return &MemoryReadModel{
		records: make(map[string]model.ReadModelRecord),
	}
}

// Apply upserts the projected value and bumps the write count
func (m *MemoryReadModel) Apply(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[key]
	rec.Key = key
	rec.Value = value
	rec.WriteCount++
	rec.UpdatedAt = time.Now().UTC()
	m.records[key] = rec
	return nil
}

// Get retrieves a projected record by key
func (m *MemoryReadModel) Get(ctx context.Context, key string) (model.ReadModelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return model.ReadModelRecord{}, ErrNotFound
	}
	return rec, nil
}

// Count returns the number of projected records
func (m *MemoryReadModel) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

// Ping always succeeds for the in-memory read model
func (m *MemoryReadModel) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryReadModel) Close() {}
