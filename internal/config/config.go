package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the full service configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Routing     RoutingConfig     `mapstructure:"routing"`
	Partitions  []PartitionConfig `mapstructure:"partitions"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Events      EventsConfig      `mapstructure:"events"`
	WriteBuffer WriteBufferConfig `mapstructure:"write_buffer"`
	ReadModel   ReadModelConfig   `mapstructure:"read_model"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig represents API key authentication configuration
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// RoutingConfig selects how writes and reads pick their partition
type RoutingConfig struct {
	// Mode is "hash" (deterministic key hashing) or "region" (explicit
	// pins with a default home region).
	Mode               string `mapstructure:"mode"`
	DefaultRegion      string `mapstructure:"default_region"`
	ReplicationEnabled bool   `mapstructure:"replication_enabled"`
}

// PartitionConfig describes one member of the fixed partition set
type PartitionConfig struct {
	Name     string         `mapstructure:"name"`
	Region   string         `mapstructure:"region"`
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

// PostgresConfig represents one PostgreSQL connection
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// MongoConfig represents one MongoDB connection
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
}

// RedisConfig represents one Redis connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig represents the tiered cache configuration
type CacheConfig struct {
	L1 L1Config `mapstructure:"l1"`
	L2 L2Config `mapstructure:"l2"`
}

// L1Config represents the in-process cache tier
type L1Config struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// L2Config represents the Redis cache tier
type L2Config struct {
	Enabled bool          `mapstructure:"enabled"`
	Redis   RedisConfig   `mapstructure:",squash"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig represents sliding-window admission control
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "redis" or "memory".
	Backend     string        `mapstructure:"backend"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	Redis       RedisConfig   `mapstructure:",squash"`
}

// BreakerConfig represents circuit breaker tuning shared by all breakers
type BreakerConfig struct {
	Threshold int           `mapstructure:"threshold"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

// EventsConfig represents the record event log
type EventsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Stream       string        `mapstructure:"stream"`
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Redis        RedisConfig   `mapstructure:",squash"`
}

// WriteBufferConfig represents the buffered write path
type WriteBufferConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Queue        string        `mapstructure:"queue"`
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Redis        RedisConfig   `mapstructure:",squash"`
}

// ReadModelConfig represents the denormalized projection target
type ReadModelConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Driver is "postgres" or "memory".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// MetricsConfig represents Prometheus exposition
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration. Anything wrong here fails startup;
// nothing is deferred to request time.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}

	if len(c.Partitions) == 0 {
		return errors.New("at least one partition is required")
	}
	names := make(map[string]bool, len(c.Partitions))
	regions := make(map[string]bool, len(c.Partitions))
	for i, p := range c.Partitions {
		if p.Name == "" {
			return fmt.Errorf("partitions[%d].name is required", i)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate partition name %q", p.Name)
		}
		names[p.Name] = true
		if p.Region != "" {
			regions[p.Region] = true
		}

		switch p.Driver {
		case "postgres":
			if p.Postgres.Host == "" || p.Postgres.Database == "" || p.Postgres.User == "" {
				return fmt.Errorf("partition %q: postgres host, database and user are required", p.Name)
			}
		case "mongo":
			if p.Mongo.URI == "" || p.Mongo.Database == "" {
				return fmt.Errorf("partition %q: mongo uri and database are required", p.Name)
			}
		case "memory":
		default:
			return fmt.Errorf("partition %q: unknown driver %q", p.Name, p.Driver)
		}
	}

	switch c.Routing.Mode {
	case "hash":
	case "region":
		if c.Routing.DefaultRegion == "" {
			return errors.New("routing.default_region is required in region mode")
		}
		if !regions[c.Routing.DefaultRegion] {
			return fmt.Errorf("no partition serves default region %q", c.Routing.DefaultRegion)
		}
	default:
		return fmt.Errorf("routing.mode must be hash or region, got %q", c.Routing.Mode)
	}

	if c.Cache.L1.MaxEntries <= 0 {
		return errors.New("cache.l1.max_entries must be positive")
	}
	if c.Cache.L1.TTL <= 0 {
		return errors.New("cache.l1.ttl must be positive")
	}
	if c.Cache.L2.Enabled {
		if c.Cache.L2.Redis.Addr == "" {
			return errors.New("cache.l2.addr is required when l2 is enabled")
		}
		if c.Cache.L2.TTL <= 0 {
			return errors.New("cache.l2.ttl must be positive")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return errors.New("rate_limit.max_requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("rate_limit.window must be positive")
		}
		switch c.RateLimit.Backend {
		case "redis":
			if c.RateLimit.Redis.Addr == "" {
				return errors.New("rate_limit.addr is required for the redis backend")
			}
		case "memory":
		default:
			return fmt.Errorf("rate_limit.backend must be redis or memory, got %q", c.RateLimit.Backend)
		}
	}

	if c.Breaker.Threshold <= 0 {
		return errors.New("breaker.threshold must be positive")
	}
	if c.Breaker.Cooldown <= 0 {
		return errors.New("breaker.cooldown must be positive")
	}

	if c.Events.Enabled {
		if c.Events.Stream == "" {
			return errors.New("events.stream is required when events are enabled")
		}
		if c.Events.BatchSize <= 0 {
			return errors.New("events.batch_size must be positive")
		}
		if c.Events.PollInterval <= 0 {
			return errors.New("events.poll_interval must be positive")
		}
		if c.Events.Redis.Addr == "" {
			return errors.New("events.addr is required when events are enabled")
		}
	}

	if c.WriteBuffer.Enabled {
		if c.WriteBuffer.Queue == "" {
			return errors.New("write_buffer.queue is required when buffering is enabled")
		}
		if c.WriteBuffer.BatchSize <= 0 {
			return errors.New("write_buffer.batch_size must be positive")
		}
		if c.WriteBuffer.PollInterval <= 0 {
			return errors.New("write_buffer.poll_interval must be positive")
		}
		if c.WriteBuffer.Redis.Addr == "" {
			return errors.New("write_buffer.addr is required when buffering is enabled")
		}
	}

	if c.ReadModel.Enabled {
		if !c.Events.Enabled {
			return errors.New("read_model requires events to be enabled")
		}
		switch c.ReadModel.Driver {
		case "postgres":
			if c.ReadModel.Postgres.Host == "" || c.ReadModel.Postgres.Database == "" || c.ReadModel.Postgres.User == "" {
				return errors.New("read_model.postgres host, database and user are required")
			}
		case "memory":
		default:
			return fmt.Errorf("read_model.driver must be postgres or memory, got %q", c.ReadModel.Driver)
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Enabled: false,
			APIKey:  "enterprise-api-key-demo",
		},
		Routing: RoutingConfig{
			Mode:               "hash",
			DefaultRegion:      "us-east",
			ReplicationEnabled: false,
		},
		Partitions: []PartitionConfig{
			{
				Name:   "shard1",
				Region: "us-east",
				Driver: "postgres",
				Postgres: PostgresConfig{
					Host:     "localhost",
					Port:     5453,
					Database: "kvstore",
					User:     "postgres",
					Password: "postgres",
					MaxConns: 20,
					MinConns: 5,
				},
			},
			{
				Name:   "shard2",
				Region: "eu-west",
				Driver: "postgres",
				Postgres: PostgresConfig{
					Host:     "localhost",
					Port:     5454,
					Database: "kvstore",
					User:     "postgres",
					Password: "postgres",
					MaxConns: 20,
					MinConns: 5,
				},
			},
		},
		Cache: CacheConfig{
			L1: L1Config{
				MaxEntries: 1000,
				TTL:        60 * time.Second,
			},
			L2: L2Config{
				Enabled: true,
				Redis:   RedisConfig{Addr: "localhost:6379", DB: 0},
				TTL:     300 * time.Second,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Backend:     "redis",
			MaxRequests: 100,
			Window:      60 * time.Second,
			Redis:       RedisConfig{Addr: "localhost:6379", DB: 1},
		},
		Breaker: BreakerConfig{
			Threshold: 5,
			Cooldown:  30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:      false,
			Stream:       "record_events",
			BatchSize:    10,
			PollInterval: time.Second,
			Redis:        RedisConfig{Addr: "localhost:6379", DB: 2},
		},
		WriteBuffer: WriteBufferConfig{
			Enabled:      false,
			Queue:        "write_queue",
			BatchSize:    10,
			PollInterval: time.Second,
			Redis:        RedisConfig{Addr: "localhost:6379", DB: 3},
		},
		ReadModel: ReadModelConfig{
			Enabled: false,
			Driver:  "postgres",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5455,
				Database: "kvstore_read",
				User:     "postgres",
				Password: "postgres",
				MaxConns: 10,
				MinConns: 2,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
