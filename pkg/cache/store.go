package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the cache substrate the proxy reads and writes.
//
// Implementations must be safe for concurrent use. No read-modify-write
// atomicity is expected: concurrent Sets for one key race and the last
// write wins.
type Store interface {
	// Get returns the entry for key or ErrCacheMiss.
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// Set stores entry under key until entry.Expires, replacing any prior
	// entry. Already-expired entries are silently dropped.
	Set(ctx context.Context, key CacheKey, entry *CacheEntry) error

	// Delete removes the entry for key.
	Delete(ctx context.Context, key CacheKey) error

	// Name identifies the substrate in logs, metrics and health output.
	Name() string

	// Close releases the substrate's resources.
	Close() error
}
