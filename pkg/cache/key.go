package cache

import (
	"net/http"
	"strings"
)

// keyPrefix namespaces proxy entries in shared Redis/Valkey databases.
const keyPrefix = "edge"

// CacheKey represents a unique identifier for a cached origin response.
type CacheKey struct {
	// Method is the HTTP method; only GET is ever stored
	Method string

	// URL is the request path plus query string exactly as received
	URL string
}

// KeyFor builds the cache key of an inbound request.
// The query string is kept verbatim so parameter order is significant.
func KeyFor(r *http.Request) CacheKey {
	return CacheKey{
		Method: r.Method,
		URL:    r.URL.RequestURI(),
	}
}

// String generates the substrate key.
// Format: edge:METHOD:/path?query
//
// Example:
//
//	edge:GET:/v1/reference/tickers?market=stocks&limit=100
func (k CacheKey) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	url := k.URL
	if url == "" {
		url = "/"
	}
	return keyPrefix + ":" + method + ":" + url
}
