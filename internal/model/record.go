package model

import "time"

// Record is the canonical stored unit: a string key mapped to an opaque
// string value plus write lineage timestamps. CreatedAt is set on first
// insert and never changes; UpdatedAt is bumped on every write.
type Record struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueuedWrite is a buffered write waiting in the queue for the background
// worker. Serialized as JSON on the wire.
type QueuedWrite struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	EnqueuedAt time.Time `json:"timestamp"`
}

// ReadModelRecord is the denormalized projection of a record, maintained by
// the projector. WriteCount counts the events applied for the key.
type ReadModelRecord struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	WriteCount int64     `json:"write_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}
