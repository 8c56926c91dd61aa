// Package observability exposes Prometheus metrics for the gateway and the
// HTTP server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sagarc03/edgeshelf"
)

var (
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeshelf_cache_lookups_total",
			Help: "Edge cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
	cacheStoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeshelf_cache_stores_total",
			Help: "Edge cache writes by result (ok, error, skipped).",
		},
		[]string{"result"},
	)
	originFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeshelf_origin_fetches_total",
			Help: "Origin fetches by result (found, absent, error).",
		},
		[]string{"result"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeshelf_http_requests_total",
			Help: "HTTP requests by method and status.",
		},
		[]string{"method", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeshelf_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		cacheLookupsTotal,
		cacheStoresTotal,
		originFetchesTotal,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

// GatewayMetrics records gateway outcomes. It implements
// edgeshelf.GatewayObserver.
type GatewayMetrics struct{}

var _ edgeshelf.GatewayObserver = GatewayMetrics{}

func (GatewayMetrics) CacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

func (GatewayMetrics) CacheStore(result string) {
	cacheStoresTotal.WithLabelValues(result).Inc()
}

func (GatewayMetrics) OriginFetch(result string) {
	originFetchesTotal.WithLabelValues(result).Inc()
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
