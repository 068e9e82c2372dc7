// Package cache stores origin responses for the edge proxy.
//
// A CacheEntry holds the response body, status and headers plus two pieces
// of metadata stamped at store time: the Cached-At timestamp and the
// classified lifetime as a Cache-Control max-age directive. Entries are
// keyed by request method and URL and are never mutated in place; a new Set
// replaces any prior entry for the same key.
//
// Three substrates implement Store:
//
//   - MemoryStore: in-process map, the default
//   - RedisStore: go-redis backend, entries expire via Redis key TTL
//   - ValkeyStore: valkey-go backend, entries expire via SET PX
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	store := cache.NewRedisStore(redisClient)
//
//	key := cache.KeyFor(req)
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from origin
//	}
//
// # HTTP Response Caching
//
//	entry, err := cache.ResponseToEntry(resp, ttl, time.Now())
//	if err != nil {
//		return err
//	}
//	if err := store.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
//	// later, on a hit
//	resp := cache.EntryToResponse(entry, time.Now())
//
// # Metrics
//
//   - edge_cache_hits_total{layer} - Cache hits per substrate
//   - edge_cache_misses_total{layer} - Cache misses per substrate
//   - edge_cache_stores_total{layer} - Entries written
//   - edge_cache_entry_bytes{layer} - Stored entry size
//   - edge_cache_errors_total{layer,operation} - Substrate errors
//
// Expiry is owned by the substrate. The proxy performs no active eviction
// beyond what each substrate does on its own.
package cache
