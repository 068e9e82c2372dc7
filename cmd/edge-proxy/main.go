package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/financialdata-online/edge-cache/pkg/cache"
	"github.com/financialdata-online/edge-cache/pkg/config"
	"github.com/financialdata-online/edge-cache/pkg/logging"
	"github.com/financialdata-online/edge-cache/pkg/metrics"
	"github.com/financialdata-online/edge-cache/pkg/origin"
	"github.com/financialdata-online/edge-cache/pkg/proxy"
)

// shutdownTimeout bounds how long listeners drain after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("edge proxy stopped")
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edge-proxy", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML configuration file")
	envFile := fs.String("env-file", ".env", "dotenv file loaded before the environment is read")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}

	cfg, err := config.NewLoader(*configPath).Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
		Fields: map[string]string{
			"version":     cfg.Version,
			"environment": cfg.Environment,
		},
	})
	logger := logging.NewLogger(logging.ComponentProxy)

	store := buildStore(ctx, cfg)
	defer store.Close()

	handler, err := newHandler(cfg, store)
	if err != nil {
		return err
	}

	servers := []*http.Server{newServer(cfg.ListenAddr(), handler)}
	if cfg.Metrics.Enabled {
		servers = append(servers, newServer(cfg.MetricsAddr(), metrics.NewServeMux()))
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		listeners = append(listeners, ln)
	}

	logger.Info().
		Str("address", cfg.ListenAddr()).
		Str("backend", cfg.Backend).
		Str("cache", store.Name()).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("Starting edge proxy")

	return serve(ctx, logger, servers, listeners)
}

// newHandler wires the origin client and dispatcher for cfg.
func newHandler(cfg config.Config, store cache.Store) (*proxy.Handler, error) {
	originClient, err := origin.New(origin.DefaultConfig(cfg.Backend))
	if err != nil {
		return nil, fmt.Errorf("create origin client: %w", err)
	}

	handler, err := proxy.New(proxy.Config{
		Store:       store,
		Origin:      originClient,
		Version:     cfg.Version,
		Environment: cfg.Environment,
		Backend:     originClient.Backend(),
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	return handler, nil
}

// buildStore returns the configured cache substrate. An unreachable Redis or
// Valkey server falls back to the memory store so the proxy still serves.
func buildStore(ctx context.Context, cfg config.Config) cache.Store {
	logger := logging.NewLogger(logging.ComponentCache)

	switch cfg.Cache.Backend {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		store := cache.NewRedisStore(client)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return memoryFallback(cfg, logger, err)
		}
		logger.Info().Str("address", cfg.Cache.Redis.Address).Msg("Connected to Redis")
		return store

	case config.CacheValkey:
		store, err := cache.NewValkeyStore(ctx, cache.ValkeyConfig{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return memoryFallback(cfg, logger, err)
		}
		logger.Info().Str("address", cfg.Cache.Redis.Address).Msg("Connected to Valkey")
		return store
	}

	return cache.NewMemoryStore(cfg.Cache.MaxEntries)
}

func memoryFallback(cfg config.Config, logger zerolog.Logger, err error) cache.Store {
	logger.Warn().
		Err(err).
		Str("backend", cfg.Cache.Backend).
		Str("address", cfg.Cache.Redis.Address).
		Msg("Cache backend unreachable, falling back to memory")
	return cache.NewMemoryStore(cfg.Cache.MaxEntries)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// serve runs every server on its listener until ctx is cancelled or one of
// them fails, then drains all of them for up to shutdownTimeout.
func serve(ctx context.Context, logger zerolog.Logger, servers []*http.Server, listeners []net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	for i, srv := range servers {
		srv, ln := srv, listeners[i]
		g.Go(func() error {
			logger.Info().Str("address", ln.Addr().String()).Msg("HTTP listener starting")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info().Msg("HTTP listeners shutting down")
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
