// Package config holds the immutable process configuration of the edge proxy.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Cache backend names.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheValkey = "valkey"
)

// Config is read once at start-up and passed to every component.
type Config struct {
	// Backend is the origin base URL requests are forwarded to
	Backend string `koanf:"backend"`

	// Version and Environment identify the process on every response
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`

	Listen  ListenConfig  `koanf:"listen"`
	Metrics MetricsConfig `koanf:"metrics"`
	Logging LoggingConfig `koanf:"logging"`
	Cache   CacheConfig   `koanf:"cache"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// MetricsConfig controls the separate Prometheus listener.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

// LoggingConfig expresses log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// CacheConfig selects and sizes the cache substrate.
type CacheConfig struct {
	Backend    string      `koanf:"backend"`
	MaxEntries int         `koanf:"maxEntries"`
	Redis      RedisConfig `koanf:"redis"`
}

// RedisConfig addresses the Redis or Valkey server.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// DefaultConfig returns the documented fallback values.
func DefaultConfig() Config {
	return Config{
		Backend:     "https://api.financialdata.online",
		Version:     "0.1.0",
		Environment: "development",
		Listen: ListenConfig{
			Address: "",
			Port:    8080,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
		},
	}
}

// Validate checks the configuration and normalizes the backend URL and
// cache backend name.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}

	c.Backend = strings.TrimRight(strings.TrimSpace(c.Backend), "/")
	u, err := url.Parse(c.Backend)
	if err != nil {
		return fmt.Errorf("config: backend invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: backend must be an absolute http(s) url: %q", c.Backend)
	}

	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Listen.Port)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("config: metrics.port invalid: %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Listen.Port {
			return fmt.Errorf("config: metrics.port must differ from listen.port: %d", c.Metrics.Port)
		}
	}

	c.Cache.Backend = strings.TrimSpace(strings.ToLower(c.Cache.Backend))
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = CacheMemory
	case CacheMemory:
	case CacheRedis, CacheValkey:
		if strings.TrimSpace(c.Cache.Redis.Address) == "" {
			return fmt.Errorf("config: cache.redis.address required for %s backend", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("config: cache.backend unsupported: %s", c.Cache.Backend)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("config: cache.maxEntries invalid: %d", c.Cache.MaxEntries)
	}
	if c.Cache.Redis.DB < 0 {
		return fmt.Errorf("config: cache.redis.db invalid: %d", c.Cache.Redis.DB)
	}

	return nil
}

// ListenAddr returns the proxy listener address.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Listen.Address, strconv.Itoa(c.Listen.Port))
}

// MetricsAddr returns the metrics listener address. It binds the same
// interface as the proxy listener.
func (c Config) MetricsAddr() string {
	return net.JoinHostPort(c.Listen.Address, strconv.Itoa(c.Metrics.Port))
}
