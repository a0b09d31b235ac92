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

// RedisQueue implements Queue with a Redis list. RPUSH + LPOP keeps FIFO
// order.
type RedisQueue struct {
	client *redis.Client
	name   string
	logger *zap.Logger
}

// NewRedisQueue creates a new Redis-backed write queue
func NewRedisQueue(addr, password string, db int, name string, logger *zap.Logger) (*RedisQueue, error) {
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

	return &RedisQueue{
		client: client,
		name:   name,
		logger: logger,
	}, nil
}

// Enqueue appends a buffered write to the tail of the queue
func (q *RedisQueue) Enqueue(ctx context.Context, w model.QueuedWrite) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal queued write: %w", err)
	}
	return q.client.RPush(ctx, q.name, data).Err()
}

// DequeueBatch removes and returns up to n writes from the head of the
// queue. An empty queue returns no writes and no error.
func (q *RedisQueue) DequeueBatch(ctx context.Context, n int) ([]model.QueuedWrite, error) {
	items, err := q.client.LPopCount(ctx, q.name, n).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	writes := make([]model.QueuedWrite, 0, len(items))
	for _, item := range items {
		var w model.QueuedWrite
		if err := json.Unmarshal([]byte(item), &w); err != nil {
			// A malformed entry is dropped, not requeued; leaving it in
			// place would wedge the queue head forever.
			q.logger.Warn("dropping malformed queued write", zap.Error(err))
			continue
		}
		writes = append(writes, w)
	}

	return writes, nil
}

// Len returns the queue depth
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

// Ping checks the Redis connection
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
