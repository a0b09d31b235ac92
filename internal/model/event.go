package model

import "time"

// EventType identifies what a record event describes.
type EventType string

const (
	// EventRecordCreated is emitted the first time a key is written.
	EventRecordCreated EventType = "RecordCreated"
	// EventRecordUpdated is emitted when an existing key is overwritten.
	EventRecordUpdated EventType = "RecordUpdated"
)

// Event is one entry in the append-only record event log. ID is assigned by
// the log on append and is strictly increasing in append order.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
