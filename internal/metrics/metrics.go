package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "farmscope"

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ── Stats cache ────────────────────────────────────────────────────────

var (
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Stats requests by outcome (hit, started, duplicate).",
	}, []string{"result"})

	CacheWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "waiters",
		Help:      "Requesters waiting for the in-flight aggregation.",
	})

	CacheLastUpdate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "last_update_timestamp",
		Help:      "Unix timestamp of the last successful aggregation.",
	})
)

// ── Aggregation ────────────────────────────────────────────────────────

var (
	AggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregation",
		Name:      "total",
		Help:      "Completed aggregations by status.",
	}, []string{"status"})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "aggregation",
		Name:      "duration_seconds",
		Help:      "Duration of a full stats aggregation.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	PoolFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregation",
		Name:      "pool_failures_total",
		Help:      "Pools that could not be computed.",
	}, []string{"network"})
)

// ── Upstream calls ─────────────────────────────────────────────────────

var (
	PriceFetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "price",
		Name:      "fetch_failures_total",
		Help:      "Price feed requests that fell back to default prices.",
	}, []string{"network"})

	ChainCallFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "call_failures_total",
		Help:      "Failed eth_call requests by contract method.",
	}, []string{"method"})
)
