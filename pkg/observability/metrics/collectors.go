package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: method, resource, status ("error" when no response arrived).
	clientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerdesk_dataservice_request_duration_seconds",
			Help:    "Data service request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource", "status"},
	)

	clientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerdesk_dataservice_requests_total",
			Help: "Total data service requests.",
		},
		[]string{"method", "resource", "status"},
	)

	queryCacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerdesk_query_cache_results_total",
			Help: "Query cache lookups by result (hit, miss, stale, snapshot).",
		},
		[]string{"result"},
	)

	queryFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerdesk_query_fetch_duration_seconds",
			Help:    "Collection fetch latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection", "outcome"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerdesk_mutations_total",
			Help: "Submitted mutations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// 0 closed, 1 open, 2 half-open.
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "providerdesk_dataservice_breaker_state",
			Help: "Circuit breaker state per data service base URL.",
		},
		[]string{"target"},
	)
)

// appCollectors is everything NewRegistry exposes besides runtime metrics.
var appCollectors = []prometheus.Collector{
	clientRequestDuration,
	clientRequestsTotal,
	queryCacheResultsTotal,
	queryFetchDuration,
	mutationsTotal,
	breakerState,
}

// RecordClientRequest records one data service round trip. A zero status
// means the request failed before a response was read.
func RecordClientRequest(method, resource string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	clientRequestDuration.WithLabelValues(method, resource, label).Observe(d.Seconds())
	clientRequestsTotal.WithLabelValues(method, resource, label).Inc()
}

// RecordCacheResult counts a query cache lookup.
func RecordCacheResult(result string) {
	queryCacheResultsTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records the latency of one collection fetch.
func ObserveFetch(collection, outcome string, d time.Duration) {
	queryFetchDuration.WithLabelValues(collection, outcome).Observe(d.Seconds())
}

// RecordMutation counts a mutation outcome. result is "success" or an
// error kind.
func RecordMutation(operation, result string) {
	mutationsTotal.WithLabelValues(operation, result).Inc()
}

// SetBreakerState publishes the breaker state of target.
func SetBreakerState(target string, state int) {
	breakerState.WithLabelValues(target).Set(float64(state))
}
