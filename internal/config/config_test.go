package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "hash", cfg.Routing.Mode)
	assert.Len(t, cfg.Partitions, 2)
	assert.Equal(t, 1000, cfg.Cache.L1.MaxEntries)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
}

func TestValidateRejectsEmptyPartitions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Partitions = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one partition")
}

func TestValidateRejectsDuplicatePartitionNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Partitions[1].Name = cfg.Partitions[0].Name

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate partition name")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Partitions[0].Driver = "sqlite"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestValidateRejectsUnservedDefaultRegion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Routing.Mode = "region"
	cfg.Routing.DefaultRegion = "ap-south"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default region")
}

func TestValidateRejectsBadRateLimitBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Backend = "etcd"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit.backend")
}

func TestValidateRejectsReadModelWithoutEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events.Enabled = false
	cfg.ReadModel.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read_model requires events")
}

func TestValidateRejectsNonPositiveCacheSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.L1.MaxEntries = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.l1.max_entries")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  host: 127.0.0.1
  port: 9090
routing:
  mode: region
  default_region: eu-west
  replication_enabled: true
partitions:
  - name: primary
    region: eu-west
    driver: memory
  - name: secondary
    region: us-east
    driver: memory
cache:
  l1:
    max_entries: 50
    ttl: 90s
rate_limit:
  enabled: true
  backend: memory
  max_requests: 10
  window: 5s
events:
  enabled: true
  stream: record_events
  addr: localhost:6379
read_model:
  enabled: true
  driver: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "region", cfg.Routing.Mode)
	assert.True(t, cfg.Routing.ReplicationEnabled)
	require.Len(t, cfg.Partitions, 2)
	assert.Equal(t, "primary", cfg.Partitions[0].Name)
	assert.Equal(t, "memory", cfg.Partitions[0].Driver)
	assert.Equal(t, 50, cfg.Cache.L1.MaxEntries)
	assert.Equal(t, 90*time.Second, cfg.Cache.L1.TTL)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.Events.Enabled)
	assert.True(t, cfg.ReadModel.Enabled)

	// Values absent from the file keep their defaults.
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, 300*time.Second, cfg.Cache.L2.TTL)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "redis.internal:6380", cfg.Cache.L2.Redis.Addr)
	assert.Equal(t, "redis.internal:6380", cfg.RateLimit.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
partitions:
  - name: only
    driver: memory
routing:
  mode: nearest
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
