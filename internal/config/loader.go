package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			fmt.Printf("Warning: config file not found at %s, using defaults\n", configPath)
		}

		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if key := os.Getenv("API_KEY"); key != "" {
		cfg.Auth.APIKey = key
	}
	if region := os.Getenv("DEFAULT_REGION"); region != "" {
		cfg.Routing.DefaultRegion = region
	}

	// Single-host deployments run every Redis-backed component against
	// one instance, separated by database number.
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.L2.Redis.Addr = addr
		cfg.RateLimit.Redis.Addr = addr
		cfg.Events.Redis.Addr = addr
		cfg.WriteBuffer.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.L2.Redis.Password = password
		cfg.RateLimit.Redis.Password = password
		cfg.Events.Redis.Password = password
		cfg.WriteBuffer.Redis.Password = password
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
