package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

const layerValkey = "valkey"

// ValkeyConfig addresses a Valkey (or Redis-compatible) server.
type ValkeyConfig struct {
	Address  string
	Password string
	DB       int
}

// ValkeyStore is a Store backed by the valkey-go client.
type ValkeyStore struct {
	client valkey.Client
}

// NewValkeyStore connects to cfg.Address and verifies the server answers PING.
func NewValkeyStore(ctx context.Context, cfg ValkeyConfig) (*ValkeyStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: valkey address required")
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: valkey ping: %w", err)
	}

	return &ValkeyStore{client: client}, nil
}

// Get implements Store.
func (s *ValkeyStore) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(key.String()).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			CacheMisses.WithLabelValues(layerValkey).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(layerValkey, "get").Inc()
		return nil, fmt.Errorf("cache: valkey get: %w", err)
	}

	payload, err := resp.AsBytes()
	if err != nil {
		CacheErrors.WithLabelValues(layerValkey, "get").Inc()
		return nil, fmt.Errorf("cache: valkey get bytes: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		CacheErrors.WithLabelValues(layerValkey, "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.IsExpired() {
		CacheMisses.WithLabelValues(layerValkey).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerValkey).Inc()
	return &entry, nil
}

// Set implements Store. The key expires server-side with PX.
func (s *ValkeyStore) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(layerValkey, "set").Inc()
		return fmt.Errorf("cache: valkey marshal: %w", err)
	}

	cmd := s.client.B().Set().Key(key.String()).Value(string(payload)).Px(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		CacheErrors.WithLabelValues(layerValkey, "set").Inc()
		return fmt.Errorf("cache: valkey set: %w", err)
	}

	CacheStores.WithLabelValues(layerValkey).Inc()
	CacheEntryBytes.WithLabelValues(layerValkey).Observe(float64(len(payload)))
	return nil
}

// Delete implements Store.
func (s *ValkeyStore) Delete(ctx context.Context, key CacheKey) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key.String()).Build()).Error(); err != nil {
		CacheErrors.WithLabelValues(layerValkey, "delete").Inc()
		return fmt.Errorf("cache: valkey del: %w", err)
	}
	return nil
}

// Name implements Store.
func (s *ValkeyStore) Name() string {
	return layerValkey
}

// Close implements Store.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
