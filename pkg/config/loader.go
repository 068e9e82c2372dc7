package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envKeys maps the recognised environment variables onto config paths.
// Anything not listed is ignored.
var envKeys = map[string]string{
	"BACKEND_URL":        "backend",
	"WORKER_VERSION":     "version",
	"WORKER_ENVIRONMENT": "environment",
	"LISTEN_ADDRESS":     "listen.address",
	"PORT":               "listen.port",
	"METRICS_ENABLED":    "metrics.enabled",
	"METRICS_PORT":       "metrics.port",
	"LOG_LEVEL":          "logging.level",
	"LOG_PRETTY":         "logging.pretty",
	"CACHE_BACKEND":      "cache.backend",
	"CACHE_MAX_ENTRIES":  "cache.maxEntries",
	"REDIS_URL":          "cache.redis.address",
	"REDIS_PASSWORD":     "cache.redis.password",
	"REDIS_DB":           "cache.redis.db",
}

// Loader hydrates the configuration with env > file > default precedence.
type Loader struct {
	files []string
}

// NewLoader prepares a loader reading the given YAML files in order. Empty
// paths are skipped.
func NewLoader(files ...string) *Loader {
	return &Loader{files: files}
}

// Load assembles and validates the effective configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	transform := func(s string) string {
		// A blank key tells the provider to skip the variable
		return envKeys[s]
	}
	if err := k.Load(env.Provider("", ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the named .env files into the process
// environment without overriding variables already set. Missing files are
// not an error.
func LoadDotEnv(files ...string) error {
	for _, path := range files {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	return nil
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"backend":     cfg.Backend,
		"version":     cfg.Version,
		"environment": cfg.Environment,
		"listen": map[string]any{
			"address": cfg.Listen.Address,
			"port":    cfg.Listen.Port,
		},
		"metrics": map[string]any{
			"enabled": cfg.Metrics.Enabled,
			"port":    cfg.Metrics.Port,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"pretty": cfg.Logging.Pretty,
		},
		"cache": map[string]any{
			"backend":    cfg.Cache.Backend,
			"maxEntries": cfg.Cache.MaxEntries,
			"redis": map[string]any{
				"address":  cfg.Cache.Redis.Address,
				"password": cfg.Cache.Redis.Password,
				"db":       cfg.Cache.Redis.DB,
			},
		},
	}
}
