package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitKeyPrefix = "rate_limit:"

// slidingWindowScript purges, counts, and records in one atomic step so two
// concurrent requests cannot both observe the same pre-record count.
// Returns {allowed, remaining, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= max then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset = window
	if oldest[2] then
		reset = math.max(1, tonumber(oldest[2]) + window - now)
	end
	return {0, 0, reset}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, max - count - 1, window}
`)

// RedisWindow implements Window with a sorted set of request timestamps per
// client, scored in milliseconds
type RedisWindow struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisWindow creates a new Redis-backed sliding window
func NewRedisWindow(addr, password string, db int, logger *zap.Logger) (*RedisWindow, error) {
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

	return &RedisWindow{
		client: client,
		logger: logger,
	}, nil
}

// Check runs the sliding-window script for one request. The member is a
// uuid so concurrent requests in the same millisecond stay distinct
// entries.
func (w *RedisWindow) Check(ctx context.Context, clientID string, max int, window time.Duration) (bool, int, time.Duration, error) {
	now := time.Now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, w.client,
		[]string{rateLimitKeyPrefix + clientID},
		now, window.Milliseconds(), max, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("sliding window script failed: %w", err)
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("sliding window script returned %d values", len(res))
	}

	allowed := res[0] == 1
	remaining := int(res[1])
	resetIn := time.Duration(res[2]) * time.Millisecond
	return allowed, remaining, resetIn, nil
}

// Reset drops the recorded requests for one client
func (w *RedisWindow) Reset(ctx context.Context, clientID string) error {
	return w.client.Del(ctx, rateLimitKeyPrefix+clientID).Err()
}

// Ping checks the Redis connection
func (w *RedisWindow) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (w *RedisWindow) Close() error {
	return w.client.Close()
}
