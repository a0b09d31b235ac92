package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rohansen856/database-layering/internal/model"
)

type eventPayload struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisEventLog implements EventLog with a Redis stream. Stream ids are
// monotonic, so append order is read order.
type RedisEventLog struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisEventLog creates a new Redis-stream event log
func NewRedisEventLog(addr, password string, db int, stream string, logger *zap.Logger) (*RedisEventLog, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisEventLog{
		client: client,
		stream: stream,
		logger: logger,
	}, nil
}

// Append adds an event to the stream and returns the stream-assigned id
func (l *RedisEventLog) Append(ctx context.Context, typ model.EventType, key, value string) (string, error) {
	data, err := json.Marshal(eventPayload{
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	id, err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		Values: map[string]interface{}{
			"type": string(typ),
			"data": data,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append event: %w", err)
	}

	return id, nil
}

// ReadAfter returns up to count events with ids after afterID. Blocks for
// up to a second waiting for new entries; a timeout returns no events.
func (l *RedisEventLog) ReadAfter(ctx context.Context, afterID string, count int) ([]model.Event, error) {
	streams, err := l.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{l.stream, afterID},
		Count:   int64(count),
		Block:   time.Second,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var events []model.Event
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			ev, err := decodeStreamMessage(msg)
			if err != nil {
				l.logger.Warn("skipping malformed event",
					zap.String("event_id", msg.ID),
					zap.Error(err))
				continue
			}
			events = append(events, ev)
		}
	}

	return events, nil
}

func decodeStreamMessage(msg redis.XMessage) (model.Event, error) {
	typ, _ := msg.Values["type"].(string)
	raw, _ := msg.Values["data"].(string)

	var payload eventPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return model.Event{}, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	return model.Event{
		ID:        msg.ID,
		Type:      model.EventType(typ),
		Key:       payload.Key,
		Value:     payload.Value,
		Timestamp: payload.Timestamp,
	}, nil
}

// Len returns the stream length
func (l *RedisEventLog) Len(ctx context.Context) (int64, error) {
	return l.client.XLen(ctx, l.stream).Result()
}

// Ping checks the Redis connection
func (l *RedisEventLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (l *RedisEventLog) Close() error {
	return l.client.Close()
}
