package store

import (
	"context"
	"errors"
	"time"

	"github.com/rohansen856/database-layering/internal/model"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// PoolStats is a driver-neutral snapshot of a store's connection pool.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// Store is a durable backing store for one partition.
type Store interface {
	// Put upserts the record for key. The returned bool is true when the key
	// did not exist before (a create, not an update).
	Put(ctx context.Context, key, value string) (model.Record, bool, error)
	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (model.Record, error)
	// Count returns the number of records held by this partition.
	Count(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	PoolStats() PoolStats
	Close()
}

// Cache is the networked cache tier (L2). Values are serialized records.
type Cache interface {
	Get(ctx context.Context, key string) (model.Record, error)
	Set(ctx context.Context, key string, rec model.Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Flush removes every cached record.
	Flush(ctx context.Context) (int64, error)
	// Keys returns the number of cached records.
	Keys(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Window tracks request timestamps per client for sliding-window admission.
// Check purges entries older than window, counts the remainder, and records
// the new request only when the count is below max. It reports whether the
// request was admitted, how much budget remains, and how long until the
// oldest entry falls out of the window.
type Window interface {
	Check(ctx context.Context, clientID string, max int, window time.Duration) (allowed bool, remaining int, resetIn time.Duration, err error)
	// Reset drops all recorded requests for the client.
	Reset(ctx context.Context, clientID string) error
	Ping(ctx context.Context) error
}

// Queue is the buffered-write queue drained by the background worker.
// Ordering is FIFO; DequeueBatch removes what it returns.
type Queue interface {
	Enqueue(ctx context.Context, w model.QueuedWrite) error
	DequeueBatch(ctx context.Context, n int) ([]model.QueuedWrite, error)
	Len(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// EventLog is the append-only record event stream.
type EventLog interface {
	// Append adds an event and returns its log-assigned id.
	Append(ctx context.Context, typ model.EventType, key, value string) (string, error)
	// ReadAfter returns up to count events with ids strictly after afterID,
	// in append order. afterID "0" reads from the beginning.
	ReadAfter(ctx context.Context, afterID string, count int) ([]model.Event, error)
	Len(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// ReadModel is the projection target the projector folds events into.
type ReadModel interface {
	// Apply upserts the value for key and increments its write count.
	Apply(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (model.ReadModelRecord, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close()
}
