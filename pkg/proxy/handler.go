// Package proxy implements the edge request dispatcher: CORS preflight,
// health, cache bypass and the cache-aware path in front of the origin.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/financialdata-online/edge-cache/pkg/cache"
	"github.com/financialdata-online/edge-cache/pkg/logging"
	"github.com/financialdata-online/edge-cache/pkg/origin"
	"github.com/financialdata-online/edge-cache/pkg/ttl"
)

// Dispatch routes, used as log fields and metric labels.
const (
	RoutePreflight   = "preflight"
	RouteHealth      = "health"
	RouteBypass      = "bypass"
	RouteUncacheable = "uncacheable"
	RouteCached      = "cached"
)

// BypassParam in the query skips the cache entirely.
const BypassParam = "nocache"

// HeaderRequestID is read from inbound requests to correlate logs.
const HeaderRequestID = "X-Request-Id"

// Forwarder relays a request to the origin. It must always return a
// response; transport failures are reported as a synthesized 502.
type Forwarder interface {
	Forward(r *http.Request) *http.Response
}

// Config holds the dispatcher configuration.
type Config struct {
	// Store holds cached origin responses
	Store cache.Store

	// Origin forwards cache misses and bypassed requests
	Origin Forwarder

	// Identity reported on every response and in the health document
	Version     string
	Environment string
	Backend     string

	// Now overrides the wall clock (for testing)
	Now func() time.Time
}

// Handler is the edge dispatcher. It holds no mutable state of its own; the
// store is the only thing shared between requests.
type Handler struct {
	store       cache.Store
	origin      Forwarder
	version     string
	environment string
	backend     string
	now         func() time.Time
	logger      zerolog.Logger
}

// New creates a new dispatcher.
func New(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Origin == nil {
		return nil, fmt.Errorf("origin is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		store:       cfg.Store,
		origin:      cfg.Origin,
		version:     cfg.Version,
		environment: cfg.Environment,
		backend:     cfg.Backend,
		now:         now,
		logger:      logging.NewLogger(logging.ComponentProxy),
	}, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := h.logger.With().Str("request_id", requestID).Logger()
	r = r.WithContext(logger.WithContext(r.Context()))

	resp := h.Handle(r)
	h.writeResponse(w, r, resp)
}

// Handle dispatches r and returns the decorated response.
func (h *Handler) Handle(r *http.Request) *http.Response {
	logger := loggerFrom(r.Context(), h.logger)

	route, class := h.route(r)
	if route == RouteCached || route == RouteUncacheable {
		classificationsTotal.WithLabelValues(class.Rule).Inc()
	}

	var resp *http.Response
	switch route {
	case RoutePreflight:
		resp = preflight()
	case RouteHealth:
		resp = h.health()
	case RouteCached:
		resp = h.cached(r, class)
	default:
		resp = h.forward(r)
	}

	status := resp.Header.Get(cache.HeaderCacheStatus)
	label := status
	if label == "" {
		label = "none"
	}
	requestsTotal.WithLabelValues(route, label).Inc()

	logger.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("route", route).
		Str("rule", class.Rule).
		Int64("ttl", class.Seconds()).
		Int("status", resp.StatusCode).
		Str("cache_status", status).
		Msg("Request handled")

	return h.Decorate(resp)
}

// route picks the dispatch route. The classification is only computed for
// GET requests that are not bypassed.
func (h *Handler) route(r *http.Request) (string, ttl.Classification) {
	switch {
	case r.Method == http.MethodOptions:
		return RoutePreflight, ttl.Classification{}
	case r.URL.Path == HealthPath:
		return RouteHealth, ttl.Classification{}
	case r.Method != http.MethodGet || r.URL.Query().Has(BypassParam):
		return RouteBypass, ttl.Classification{}
	}

	class := ttl.Classify(r.URL.EscapedPath(), r.URL.Query(), h.now())
	if !class.Cacheable() {
		return RouteUncacheable, class
	}
	return RouteCached, class
}

// forward relays r without touching the cache.
func (h *Handler) forward(r *http.Request) *http.Response {
	resp := h.origin.Forward(r)
	stripCacheStatus(resp.Header)
	return resp
}

// cached serves r from the store, or fetches it from the origin and stores
// a successful response for class.TTL. Store failures are treated as misses.
func (h *Handler) cached(r *http.Request, class ttl.Classification) *http.Response {
	ctx := r.Context()
	logger := loggerFrom(ctx, h.logger)
	key := cache.KeyFor(r)

	entry, err := h.store.Get(ctx, key)
	if err == nil {
		resp := cache.EntryToResponse(entry, h.now())
		logger.Debug().Str("key", key.String()).Msg("Cache hit")
		return resp
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Str("key", key.String()).Str("cache", h.store.Name()).Msg("Cache get error")
	}

	// The stored body is replayed to every client, so it must not depend on
	// this client's encoding preferences. Without Accept-Encoding the
	// transport negotiates gzip itself and decodes it.
	fwd := r.Clone(ctx)
	fwd.Header.Del("Accept-Encoding")

	resp := h.origin.Forward(fwd)
	stripCacheStatus(resp.Header)

	if !storable(resp) {
		logger.Debug().
			Str("key", key.String()).
			Int("status", resp.StatusCode).
			Str("content_encoding", resp.Header.Get("Content-Encoding")).
			Msg("Response not cacheable")
	} else {
		entry, err := cache.ResponseToEntry(resp, class.TTL, h.now())
		if err != nil {
			// The origin body broke off mid-read; nothing complete to relay
			logger.Error().Err(err).Str("key", key.String()).Msg("Failed to read origin response")
			resp.Body.Close()
			return origin.ErrorResponse(err)
		}
		if err := h.store.Set(ctx, key, entry); err != nil {
			logger.Warn().Err(err).Str("key", key.String()).Str("cache", h.store.Name()).Msg("Failed to cache response")
		} else {
			logger.Debug().
				Str("key", key.String()).
				Dur("ttl", class.TTL).
				Msg("Cached response")
		}
	}

	resp.Header.Set(cache.HeaderCacheStatus, cache.StatusMiss)
	return resp
}

// storable reports whether resp may be stored under its request's key: a
// complete 2xx response with an identity body. Partial content only answers
// the Range that asked for it.
func storable(resp *http.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.StatusCode == http.StatusPartialContent {
		return false
	}
	enc := resp.Header.Get("Content-Encoding")
	return enc == "" || strings.EqualFold(enc, "identity")
}

// stripCacheStatus removes cache status headers the origin may have set, so
// only this layer decides HIT or MISS.
func stripCacheStatus(h http.Header) {
	h.Del(cache.HeaderCacheStatus)
	h.Del(cache.HeaderCacheAge)
}

func loggerFrom(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}

func newResponse(status int, header http.Header, body []byte) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}
