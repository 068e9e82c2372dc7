// Package origin forwards requests to the backend data API and normalizes
// its responses for the edge.
package origin

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/financialdata-online/edge-cache/pkg/logging"
)

// HeaderAllowOrigin is set to "*" on every relayed or synthesized response.
const HeaderAllowOrigin = "Access-Control-Allow-Origin"

// Prometheus metrics for origin round trips.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_origin_requests_total",
		Help: "Total origin requests by method and status",
	}, []string{"method", "status"})

	originRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edge_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_origin_errors_total",
		Help: "Total origin errors by class",
	}, []string{"class"})
)

// hopHeaders are connection-scoped and never relayed in either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client forwards requests to the backend origin.
type Client struct {
	httpClient *http.Client
	backend    string
	logger     zerolog.Logger
}

// Config holds the origin client configuration.
type Config struct {
	// Backend is the absolute base URL of the origin, without trailing slash.
	Backend string

	// HTTPClient performs the round trips. No timeout is imposed beyond the
	// client's own defaults.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration for backend using a plain
// http.Client.
func DefaultConfig(backend string) Config {
	return Config{
		Backend:    backend,
		HTTPClient: &http.Client{},
	}
}

// New creates a new origin client.
func New(cfg Config) (*Client, error) {
	backend := strings.TrimRight(cfg.Backend, "/")
	if backend == "" {
		return nil, fmt.Errorf("backend url is required")
	}

	u, err := url.Parse(backend)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http or https (got %q)", backend)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url must include a host (got %q)", backend)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		backend:    backend,
		logger:     logging.NewLogger(logging.ComponentOrigin),
	}, nil
}

// Backend returns the origin base URL.
func (c *Client) Backend() string {
	return c.backend
}

// Target returns the origin URL for an inbound request: the backend followed
// by the request's path and query, unchanged.
func (c *Client) Target(r *http.Request) string {
	target := c.backend + r.URL.EscapedPath()
	if r.URL.RawQuery != "" || r.URL.ForceQuery {
		target += "?" + r.URL.RawQuery
	}
	return target
}

// Forward relays r to the origin and returns its response. A transport
// failure is converted into the synthesized 502 from ErrorResponse, so the
// result is never nil.
func (c *Client) Forward(r *http.Request) *http.Response {
	resp, err := c.Do(r)
	if err != nil {
		return ErrorResponse(err)
	}
	return resp
}

// Do relays r to the origin. The method, headers and body are forwarded
// verbatim apart from hop-by-hop headers, and the request context bounds the
// round trip. Origin error statuses are returned as responses; only
// transport failures return an *OriginError.
func (c *Client) Do(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	target := c.Target(r)

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, &OriginError{URL: target, ErrorClass: ErrorClassNetwork, Err: err}
	}
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	removeHopHeaders(req.Header)
	if body != nil {
		req.ContentLength = r.ContentLength
	}

	c.logger.Debug().
		Str("method", r.Method).
		Str("target", target).
		Msg("Forwarding request to origin")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	originRequestDuration.WithLabelValues(r.Method).Observe(time.Since(startTime).Seconds())

	if err != nil {
		originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		originRequestsTotal.WithLabelValues(r.Method, "network_error").Inc()
		c.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("target", target).
			Msg("Origin request failed")
		return nil, &OriginError{URL: target, ErrorClass: ErrorClassNetwork, Err: err}
	}

	originRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()

	if class := ClassifyStatus(resp.StatusCode); class != "" {
		originErrorsTotal.WithLabelValues(string(class)).Inc()
		event := c.logger.Debug()
		if class == ErrorClassServer {
			event = c.logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("target", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Origin returned error status")
	}

	removeHopHeaders(resp.Header)
	resp.Header.Set(HeaderAllowOrigin, "*")
	return resp, nil
}

// removeHopHeaders drops hop-by-hop headers, including any named by the
// Connection header.
func removeHopHeaders(h http.Header) {
	for _, f := range h.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
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
