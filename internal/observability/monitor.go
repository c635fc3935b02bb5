package observability

import (
	"context"
	"net/url"
	"runtime"
	"time"

	"obscore/internal/logging"
)

// Default thresholds above which operations are flagged as slow or heavy.
const (
	DefaultSlowQueryThreshold    = 100 * time.Millisecond
	DefaultSlowExternalThreshold = 1000 * time.Millisecond
	DefaultMemoryThresholdBytes  = 500 * 1024 * 1024
)

// MonitorConfig configures the performance monitor's thresholds.
type MonitorConfig struct {
	SlowQueryThreshold    time.Duration
	SlowExternalThreshold time.Duration
	MemoryThresholdBytes  uint64
}

// Monitor formats performance metrics into log records and feeds the
// Prometheus collector. Stateless apart from the shared collector; safe
// for concurrent use.
type Monitor struct {
	logger    *logging.Logger
	collector *Collector
	cfg       MonitorConfig
}

// NewMonitor creates a performance monitor. A nil collector disables the
// Prometheus side; records are still logged.
func NewMonitor(logger *logging.Logger, collector *Collector, cfg MonitorConfig) *Monitor {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = DefaultSlowQueryThreshold
	}
	if cfg.SlowExternalThreshold <= 0 {
		cfg.SlowExternalThreshold = DefaultSlowExternalThreshold
	}
	if cfg.MemoryThresholdBytes == 0 {
		cfg.MemoryThresholdBytes = DefaultMemoryThresholdBytes
	}
	return &Monitor{logger: logger, collector: collector, cfg: cfg}
}

// QueryExecuted records one database query. Transaction markers and
// schema introspection are skipped. Statement text is sanitized before it
// reaches the log; queries above the slow threshold log at warn.
func (m *Monitor) QueryExecuted(ctx context.Context, sql string, duration time.Duration, cached bool) {
	if InternalStatement(sql) {
		return
	}

	operation, table := ParseStatement(sql)
	slow := duration > m.cfg.SlowQueryThreshold

	if m.collector != nil {
		m.collector.DBOperations.WithLabelValues(operation, table).Inc()
		m.collector.DBDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
		if slow {
			m.collector.SlowQueries.Inc()
		}
	}
	if stats, ok := RequestStatsFromContext(ctx); ok {
		stats.addQuery(duration)
	}

	meta := map[string]any{
		"metric_type": "database_query",
		"metric_data": map[string]any{
			"query":       SanitizeSQL(sql),
			"operation":   operation,
			"table":       table,
			"duration_ms": duration.Milliseconds(),
			"cached":      cached,
			"slow":        slow,
		},
	}
	if slow {
		m.logger.Warn(ctx, "slow database query", meta)
	} else {
		m.logger.Debug(ctx, "database query", meta)
	}
}

// CacheOperation records one cache lookup. Keys matching the sensitive
// name patterns are redacted before logging.
func (m *Monitor) CacheOperation(ctx context.Context, key string, hit bool, duration time.Duration) {
	if m.collector != nil {
		if hit {
			m.collector.CacheHits.Inc()
		} else {
			m.collector.CacheMisses.Inc()
		}
	}
	if stats, ok := RequestStatsFromContext(ctx); ok {
		stats.addCache(hit)
	}

	loggedKey := key
	if logging.SensitiveKey(key) {
		loggedKey = logging.RedactionMarker
	}
	m.logger.Debug(ctx, "cache operation", map[string]any{
		"metric_type": "cache",
		"metric_data": map[string]any{
			"key":         loggedKey,
			"hit":         hit,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// ExternalCall records one outbound HTTP call. Sensitive query-string
// parameter values are redacted; calls above the slow threshold log at
// warn, the rest at info.
func (m *Monitor) ExternalCall(ctx context.Context, rawURL string, duration time.Duration, status int) {
	slow := duration > m.cfg.SlowExternalThreshold
	meta := map[string]any{
		"metric_type": "external_call",
		"metric_data": map[string]any{
			"url":         sanitizeURL(rawURL),
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"slow":        slow,
		},
	}
	if slow {
		m.logger.Warn(ctx, "slow external call", meta)
	} else {
		m.logger.Info(ctx, "external call", meta)
	}
}

// MemorySnapshot reports current heap usage and GC counters, flagging
// usage above the configured threshold at warn.
func (m *Monitor) MemorySnapshot(ctx context.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	high := ms.Alloc > m.cfg.MemoryThresholdBytes
	meta := map[string]any{
		"metric_type": "memory",
		"metric_data": map[string]any{
			"alloc_bytes":  ms.Alloc,
			"sys_bytes":    ms.Sys,
			"heap_objects": ms.HeapObjects,
			"gc_cycles":    ms.NumGC,
			"gc_pause_ms":  time.Duration(ms.PauseTotalNs).Milliseconds(),
			"goroutines":   runtime.NumGoroutine(),
			"high_usage":   high,
		},
	}
	if high {
		m.logger.Warn(ctx, "high memory usage", meta)
	} else {
		m.logger.Debug(ctx, "memory snapshot", meta)
	}
}

// JobPerformance records a background job's outcome: error when the job
// failed, info otherwise.
func (m *Monitor) JobPerformance(ctx context.Context, job string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	if m.collector != nil {
		m.collector.JobsExecuted.WithLabelValues(job, status).Inc()
		m.collector.JobDuration.WithLabelValues(job).Observe(duration.Seconds())
	}

	meta := map[string]any{
		"metric_type": "job",
		"metric_data": map[string]any{
			"job":         job,
			"duration_ms": duration.Milliseconds(),
			"status":      status,
		},
	}
	if err != nil {
		meta["error_message"] = err.Error()
		m.logger.Error(ctx, "job performance", meta)
	} else {
		m.logger.Info(ctx, "job performance", meta)
	}
}

type trackKey string

// StartTracking opens an ad hoc stopwatch span named name. The start time
// rides on the returned context, so EndTracking only resolves on the same
// logical task.
func (m *Monitor) StartTracking(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, trackKey(name), time.Now())
}

// EndTracking closes a stopwatch span opened by StartTracking and returns
// the elapsed time. ok is false when no matching span is on the context.
func (m *Monitor) EndTracking(ctx context.Context, name string) (time.Duration, bool) {
	start, ok := ctx.Value(trackKey(name)).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

// sanitizeURL redacts sensitive query-string parameter values while
// preserving the URL's shape. Unparseable URLs are returned as-is.
func sanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for name := range q {
		if logging.SensitiveKey(name) {
			q.Set(name, logging.RedactionMarker)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
