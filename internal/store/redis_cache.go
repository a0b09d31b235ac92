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

// recordKeyPrefix namespaces cached records away from the other Redis
// structures this service keeps.
const recordKeyPrefix = "record:"

// RedisCache implements Cache (the L2 tier) for Redis
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a new Redis-backed L2 cache
func NewRedisCache(addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
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

	return &RedisCache{
		client: client,
		logger: logger,
	}, nil
}

// Get retrieves a cached record
func (c *RedisCache) Get(ctx context.Context, key string) (model.Record, error) {
	data, err := c.client.Get(ctx, recordKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return model.Record{}, ErrNotFound
	}
	if err != nil {
		return model.Record{}, err
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Record{}, fmt.Errorf("failed to unmarshal cached record: %w", err)
	}

	return rec, nil
}

// Set caches a record with TTL
func (c *RedisCache) Set(ctx context.Context, key string, rec model.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return c.client.Set(ctx, recordKeyPrefix+key, data, ttl).Err()
}

// Delete removes a cached record
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, recordKeyPrefix+key).Err()
}

// Flush removes every cached record under the record prefix and returns
// how many were dropped. Uses SCAN rather than KEYS to stay incremental.
func (c *RedisCache) Flush(ctx context.Context) (int64, error) {
	var deleted int64
	batch := make([]string, 0, 500)

	iter := c.client.Scan(ctx, 0, recordKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := c.client.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	if len(batch) > 0 {
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}

	return deleted, nil
}

// Keys counts cached records under the record prefix
func (c *RedisCache) Keys(ctx context.Context) (int64, error) {
	var count int64
	iter := c.client.Scan(ctx, 0, recordKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
