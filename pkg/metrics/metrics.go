// Package metrics exposes the Prometheus registry for the edge proxy.
// All metrics are defined in their respective packages (cache, origin, proxy)
// to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where the metrics listener serves the scrape endpoint.
const Path = "/metrics"

// Registry is the default Prometheus registry used by the edge proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the counterpart of Registry read by the scrape handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the scrape handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// NewServeMux returns a mux serving Handler on Path, for the dedicated
// metrics listener.
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())
	return mux
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - edge_cache_hits_total{layer} (Counter): Cache hits by substrate (memory, redis, valkey)
//   - edge_cache_misses_total{layer} (Counter): Cache misses by substrate
//   - edge_cache_stores_total{layer} (Counter): Entries written
//   - edge_cache_entry_bytes{layer} (Histogram): Stored entry size (encoded for redis/valkey, body for memory)
//   - edge_cache_errors_total{layer, operation} (Counter): Substrate errors (get, set, delete)
//
// Origin Metrics (pkg/origin):
//   - edge_origin_requests_total{method, status} (Counter): Origin requests by method and HTTP status
//   - edge_origin_request_duration_seconds{method} (Histogram): Origin round trip duration
//   - edge_origin_errors_total{class} (Counter): Origin errors by class (client, server, network)
//
// Dispatcher Metrics (pkg/proxy):
//   - edge_requests_total{route, cache_status} (Counter): Inbound requests by route and HIT/MISS/none
//   - edge_ttl_classifications_total{rule} (Counter): Matching TTL rule for classified GETs
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(edge_requests_total{cache_status="HIT"}[5m])) /
//   sum(rate(edge_requests_total{route="cached"}[5m]))
//
//   # Origin Network Failures
//   rate(edge_origin_errors_total{class="network"}[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(edge_origin_request_duration_seconds_bucket[5m]))
//
//   # Traffic That Never Caches
//   sum by (rule) (rate(edge_ttl_classifications_total{rule=~"snapshot|last-trade|last-nbbo|prev-aggregate|today-open-close"}[5m]))
