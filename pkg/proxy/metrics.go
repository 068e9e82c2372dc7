package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks inbound requests by dispatch route and cache status
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_requests_total",
		Help: "Total inbound requests by route and cache status",
	}, []string{"route", "cache_status"}) // cache_status: HIT, MISS, none

	// classificationsTotal tracks which TTL rule matched each cacheable GET
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_ttl_classifications_total",
		Help: "Total TTL classifications by matching rule",
	}, []string{"rule"})
)
