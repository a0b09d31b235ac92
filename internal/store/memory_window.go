package store

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow implements Window with per-client timestamp slices. The
// mutex makes purge, count, and record one atomic step.
type MemoryWindow struct {
	mu      sync.Mutex
	clients map[string][]int64
}

// NewMemoryWindow creates an empty in-memory sliding window
func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{
		clients: make(map[string][]int64),
	}
}

// Check purges expired timestamps, counts the rest, and records the request
// if the client is under its budget
func (w *MemoryWindow) Check(ctx context.Context, clientID string, max int, window time.Duration) (bool, int, time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UnixMilli()
	cutoff := now - window.Milliseconds()

	kept := w.clients[clientID][:0]
	for _, ts := range w.clients[clientID] {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= max {
		w.clients[clientID] = kept
		resetIn := time.Duration(kept[0]+window.Milliseconds()-now) * time.Millisecond
		if resetIn < time.Millisecond {
			resetIn = time.Millisecond
		}
		return false, 0, resetIn, nil
	}

	w.clients[clientID] = append(kept, now)
	return true, max - len(kept) - 1, window, nil
}

// Reset drops the recorded requests for one client
func (w *MemoryWindow) Reset(ctx context.Context, clientID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.clients, clientID)
	return nil
}

// Ping always succeeds for the in-memory window
func (w *MemoryWindow) Ping(ctx context.Context) error {
	return nil
}
