package cache

import (
	"math"
	"net/http"
	"time"
)

// Metadata headers stamped onto stored responses.
const (
	// HeaderCachedAt carries the RFC 3339 time the entry was stored.
	HeaderCachedAt = "Cached-At"

	// HeaderCacheControl carries the classified lifetime as max-age.
	HeaderCacheControl = "Cache-Control"

	// HeaderCacheStatus is HIT or MISS on cache-aware responses.
	HeaderCacheStatus = "Cache-Status"

	// HeaderCacheAge is the entry age in whole seconds on a HIT.
	HeaderCacheAge = "Cache-Age"
)

// CachedAtLayout is the ISO-8601 layout of the Cached-At header, in UTC
// with millisecond precision.
const CachedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Cache status values.
const (
	StatusHit  = "HIT"
	StatusMiss = "MISS"
)

// CacheEntry represents a cached origin response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers including Cached-At and Cache-Control
	Headers http.Header `json:"headers"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`

	// Expires is CachedAt plus the classified lifetime
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns the whole seconds elapsed between the stored Cached-At header
// and now. The CachedAt field is used when the header is absent or
// unparseable; an entry without either has age 0.
func (e *CacheEntry) Age(now time.Time) int64 {
	cachedAt := e.CachedAt
	if raw := e.Headers.Get(HeaderCachedAt); raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			cachedAt = parsed
		}
	}
	if cachedAt.IsZero() {
		return 0
	}

	age := math.Floor(now.Sub(cachedAt).Seconds())
	if age < 0 {
		return 0
	}
	return int64(age)
}

// Clone returns a deep copy so stored entries cannot be mutated by callers.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Data != nil {
		out.Data = append([]byte(nil), e.Data...)
	}
	out.Headers = e.Headers.Clone()
	return &out
}
