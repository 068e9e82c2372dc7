package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// clearEnv blanks every recognised variable so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range envKeys {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) []string
		wantErr bool
		assert  func(t *testing.T, cfg Config)
	}{
		{
			name:  "returns defaults when no overrides",
			setup: func(t *testing.T) []string { return nil },
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "merges file overrides",
			setup: func(t *testing.T) []string {
				return []string{writeFile(t, "edge.yaml", "backend: http://origin.internal:8081/\nlisten:\n  port: 9000\ncache:\n  backend: redis\n  maxEntries: 50\n")}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "http://origin.internal:8081", cfg.Backend)
				require.Equal(t, 9000, cfg.Listen.Port)
				require.Equal(t, CacheRedis, cfg.Cache.Backend)
				require.Equal(t, 50, cfg.Cache.MaxEntries)
				require.Equal(t, "0.1.0", cfg.Version)
			},
		},
		{
			name: "prefers env overrides",
			setup: func(t *testing.T) []string {
				t.Setenv("PORT", "9091")
				t.Setenv("WORKER_VERSION", "2.0.0")
				t.Setenv("WORKER_ENVIRONMENT", "production")
				return []string{writeFile(t, "edge.yaml", "listen:\n  port: 9000\nversion: 1.0.0\n")}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9091, cfg.Listen.Port)
				require.Equal(t, "2.0.0", cfg.Version)
				require.Equal(t, "production", cfg.Environment)
			},
		},
		{
			name: "maps every env variable",
			setup: func(t *testing.T) []string {
				t.Setenv("BACKEND_URL", "https://backend.example.com")
				t.Setenv("LISTEN_ADDRESS", "127.0.0.1")
				t.Setenv("METRICS_ENABLED", "false")
				t.Setenv("METRICS_PORT", "9191")
				t.Setenv("LOG_LEVEL", "debug")
				t.Setenv("LOG_PRETTY", "true")
				t.Setenv("CACHE_BACKEND", "Valkey")
				t.Setenv("CACHE_MAX_ENTRIES", "25")
				t.Setenv("REDIS_URL", "cache:6379")
				t.Setenv("REDIS_PASSWORD", "secret")
				t.Setenv("REDIS_DB", "3")
				return nil
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "https://backend.example.com", cfg.Backend)
				require.Equal(t, "127.0.0.1", cfg.Listen.Address)
				require.False(t, cfg.Metrics.Enabled)
				require.Equal(t, 9191, cfg.Metrics.Port)
				require.Equal(t, "debug", cfg.Logging.Level)
				require.True(t, cfg.Logging.Pretty)
				require.Equal(t, CacheValkey, cfg.Cache.Backend)
				require.Equal(t, 25, cfg.Cache.MaxEntries)
				require.Equal(t, RedisConfig{Address: "cache:6379", Password: "secret", DB: 3}, cfg.Cache.Redis)
			},
		},
		{
			name: "ignores unrelated env",
			setup: func(t *testing.T) []string {
				t.Setenv("EDGE_UNRELATED", "x")
				t.Setenv("BACKEND", "http://not-mapped")
				return nil
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, DefaultConfig().Backend, cfg.Backend)
			},
		},
		{
			name: "missing file",
			setup: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "absent.yaml")}
			},
			wantErr: true,
		},
		{
			name: "invalid backend from env",
			setup: func(t *testing.T) []string {
				t.Setenv("BACKEND_URL", "not a url")
				return nil
			},
			wantErr: true,
		},
		{
			name: "invalid port from env",
			setup: func(t *testing.T) []string {
				t.Setenv("PORT", "70000")
				return nil
			},
			wantErr: true,
		},
		{
			name: "unknown cache backend",
			setup: func(t *testing.T) []string {
				t.Setenv("CACHE_BACKEND", "memcached")
				return nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			files := tt.setup(t)

			cfg, err := NewLoader(files...).Load(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.assert(t, cfg)
		})
	}
}

func TestLoaderCancelledContext(t *testing.T) {
	clearEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(writeFile(t, "edge.yaml", "version: 1\n")).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, ".env", "WORKER_VERSION=9.9.9\nBACKEND_URL=http://from-dotenv\n")
	t.Setenv("BACKEND_URL", "http://from-process")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".missing"), path))
	t.Cleanup(func() { _ = os.Unsetenv("WORKER_VERSION") })

	cfg, err := NewLoader().Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "9.9.9", cfg.Version)
	require.Equal(t, "http://from-process", cfg.Backend, "process env wins over .env")
}
