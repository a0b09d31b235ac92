package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rohansen856/database-layering/internal/model"
)

// MemoryEventLog implements EventLog with an append-only slice. Ids follow
// the same "<seq>-0" shape as Redis stream ids so cursor handling is
// identical across implementations.
type MemoryEventLog struct {
	mu     sync.Mutex
	events []model.Event
	seq    int64
}

// NewMemoryEventLog creates an empty in-memory event log
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

// Append adds an event and returns its id
func (l *MemoryEventLog) Append(ctx context.Context, typ model.EventType, key, value string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	ev := model.Event{
		ID:        fmt.Sprintf("%d-0", l.seq),
		Type:      typ,
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
	l.events = append(l.events, ev)
	return ev.ID, nil
}

// ReadAfter returns up to count events appended after afterID
func (l *MemoryEventLog) ReadAfter(ctx context.Context, afterID string, count int) ([]model.Event, error) {
	after := parseSeq(afterID)

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.Event
	for _, ev := range l.events {
		if parseSeq(ev.ID) <= after {
			continue
		}
		out = append(out, ev)
		if len(out) == count {
			break
		}
	}
	return out, nil
}

func parseSeq(id string) int64 {
	head, _, _ := strings.Cut(id, "-")
	seq, _ := strconv.ParseInt(head, 10, 64)
	return seq
}

// Len returns the number of appended events
func (l *MemoryEventLog) Len(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.events)), nil
}

// Ping always succeeds for the in-memory log
func (l *MemoryEventLog) Ping(ctx context.Context) error {
	return nil
}
