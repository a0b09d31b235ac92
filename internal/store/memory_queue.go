package store

import (
	"context"
	"sync"

	"github.com/rohansen856/database-layering/internal/model"
)

// MemoryQueue implements Queue with a mutex-guarded slice
type MemoryQueue struct {
	mu     sync.Mutex
	writes []model.QueuedWrite
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue appends a buffered write to the tail of the queue
func (q *MemoryQueue) Enqueue(ctx context.Context, w model.QueuedWrite) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.writes = append(q.writes, w)
	return nil
}

// DequeueBatch removes and returns up to n writes from the head
func (q *MemoryQueue) DequeueBatch(ctx context.Context, n int) ([]model.QueuedWrite, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.writes) == 0 {
		return nil, nil
	}
	if n > len(q.writes) {
		n = len(q.writes)
	}

	batch := make([]model.QueuedWrite, n)
	copy(batch, q.writes[:n])
	q.writes = q.writes[n:]
	return batch, nil
}

// Len returns the queue depth
func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.writes)), nil
}

// Ping always succeeds for the in-memory queue
func (q *MemoryQueue) Ping(ctx context.Context) error {
	return nil
}
