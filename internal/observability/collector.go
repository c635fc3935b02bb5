// Package observability implements the performance monitor: metric
// formatting with slow-operation thresholds, Prometheus collectors, and
// the per-request stats accumulator the middleware reports on completion.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds the Prometheus metrics for the observability core.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec
	SlowQueries  prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Job metrics
	JobsExecuted *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec

	// Alert metrics
	AlertsDispatched   prometheus.Counter
	AlertsDeduplicated prometheus.Counter
}

// NewCollector creates the metrics collector with the given namespace.
// Singleton so repeated construction in tests does not double-register.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	dbOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_operations_total",
			Help:      "Total number of database operations",
		},
		[]string{"operation", "table"},
	)

	dbDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Database operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	slowQueries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_queries_total",
			Help:      "Total number of queries above the slow threshold",
		},
	)

	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
	)

	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
	)

	jobsExecuted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_executed_total",
			Help:      "Total number of background job executions",
		},
		[]string{"job", "status"},
	)

	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	alertsDispatched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dispatched_total",
			Help:      "Total number of alerts dispatched to the sink",
		},
	)

	alertsDeduplicated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_deduplicated_total",
			Help:      "Total number of alerts suppressed by the cooldown",
		},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		dbOperations,
		dbDuration,
		slowQueries,
		cacheHits,
		cacheMisses,
		jobsExecuted,
		jobDuration,
		alertsDispatched,
		alertsDeduplicated,
	)

	globalCollector = &Collector{
		registry:           registry,
		HTTPRequests:       httpRequests,
		HTTPDuration:       httpDuration,
		DBOperations:       dbOperations,
		DBDuration:         dbDuration,
		SlowQueries:        slowQueries,
		CacheHits:          cacheHits,
		CacheMisses:        cacheMisses,
		JobsExecuted:       jobsExecuted,
		JobDuration:        jobDuration,
		AlertsDispatched:   alertsDispatched,
		AlertsDeduplicated: alertsDeduplicated,
	}

	return globalCollector
}

// ResetForTesting drops the global collector so tests can rebuild it.
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// GetRegistry returns the Prometheus registry for this collector.
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
