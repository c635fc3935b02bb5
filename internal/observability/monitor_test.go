package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obscore/internal/logging"
)

func newTestMonitor(t *testing.T) (*Monitor, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := logging.New(logging.Config{
		Environment: "test",
		Service:     "obscore-test",
		MinLevel:    logging.DebugLevel,
		Sink:        buf,
	})
	return NewMonitor(logger, nil, MonitorConfig{}), buf
}

func monitorRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m), "malformed record: %s", line)
		out = append(out, m)
	}
	return out
}

func TestQueryExecuted(t *testing.T) {
	t.Run("fast query logs at debug", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.QueryExecuted(context.Background(), "SELECT * FROM nodes WHERE id = 7", 10*time.Millisecond, false)

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 1)
		rec := recs[0]
		assert.Equal(t, "debug", rec["level"])
		assert.Equal(t, "database_query", rec["metric_type"])

		data := rec["metric_data"].(map[string]any)
		assert.Equal(t, "SELECT * FROM nodes WHERE id = ?", data["query"])
		assert.Equal(t, "select", data["operation"])
		assert.Equal(t, "nodes", data["table"])
		assert.Equal(t, false, data["slow"])
	})

	t.Run("slow query logs at warn", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.QueryExecuted(context.Background(), "SELECT * FROM nodes", 150*time.Millisecond, false)

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "warn", recs[0]["level"])
		data := recs[0]["metric_data"].(map[string]any)
		assert.Equal(t, true, data["slow"])
	})

	t.Run("internal statements are skipped", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.QueryExecuted(context.Background(), "BEGIN", time.Millisecond, false)
		monitor.QueryExecuted(context.Background(), "SELECT * FROM pg_catalog.pg_tables", time.Millisecond, false)

		assert.Empty(t, buf.Bytes())
	})

	t.Run("feeds the request accumulator", func(t *testing.T) {
		monitor, _ := newTestMonitor(t)
		ctx := WithRequestStats(context.Background())

		monitor.QueryExecuted(ctx, "SELECT * FROM nodes", 20*time.Millisecond, false)
		monitor.QueryExecuted(ctx, "SELECT * FROM edges", 30*time.Millisecond, false)

		stats, ok := RequestStatsFromContext(ctx)
		require.True(t, ok)
		snap := stats.Snapshot()
		assert.Equal(t, 2, snap["query_count"])
		assert.Equal(t, int64(50), snap["query_duration_ms"])
	})
}

func TestCacheOperation(t *testing.T) {
	t.Run("records hits and misses", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)
		ctx := WithRequestStats(context.Background())

		monitor.CacheOperation(ctx, "graph:user-1", true, time.Millisecond)
		monitor.CacheOperation(ctx, "graph:user-2", false, time.Millisecond)

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 2)
		assert.Equal(t, true, recs[0]["metric_data"].(map[string]any)["hit"])
		assert.Equal(t, false, recs[1]["metric_data"].(map[string]any)["hit"])

		stats, _ := RequestStatsFromContext(ctx)
		snap := stats.Snapshot()
		assert.Equal(t, 1, snap["cache_hits"])
		assert.Equal(t, 1, snap["cache_misses"])
	})

	t.Run("sensitive key names are redacted", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.CacheOperation(context.Background(), "session_token:abc", true, time.Millisecond)

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 1)
		data := recs[0]["metric_data"].(map[string]any)
		assert.Equal(t, logging.RedactionMarker, data["key"])
	})
}

func TestExternalCall(t *testing.T) {
	t.Run("fast call logs at info", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.ExternalCall(context.Background(), "https://api.example.com/v1/items", 200*time.Millisecond, 200)

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "info", recs[0]["level"])
		data := recs[0]["metric_data"].(map[string]any)
		assert.Equal(t, false, data["slow"])
		assert.Equal(t, float64(200), data["status"])
	})

	t.Run("slow call logs at warn", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.ExternalCall(context.Background(), "https://api.example.com/v1/items", 1500*time.Millisecond, 200)

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "warn", recs[0]["level"])
	})

	t.Run("sensitive query parameters are redacted", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.ExternalCall(context.Background(), "https://api.example.com/v1/items?api_key=sk_live_99&page=2", 100*time.Millisecond, 200)

		recs := monitorRecords(t, buf)
		url := recs[0]["metric_data"].(map[string]any)["url"].(string)
		assert.NotContains(t, url, "sk_live_99")
		assert.Contains(t, url, "page=2")
	})
}

func TestMemorySnapshot(t *testing.T) {
	monitor, buf := newTestMonitor(t)

	monitor.MemorySnapshot(context.Background())

	recs := monitorRecords(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "memory", recs[0]["metric_type"])
	data := recs[0]["metric_data"].(map[string]any)
	assert.NotZero(t, data["alloc_bytes"])
	assert.NotZero(t, data["goroutines"])
	assert.Contains(t, data, "high_usage")
}

func TestJobPerformance(t *testing.T) {
	t.Run("success logs at info", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.JobPerformance(context.Background(), "reindex", 2*time.Second, nil)

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "info", recs[0]["level"])
		data := recs[0]["metric_data"].(map[string]any)
		assert.Equal(t, "ok", data["status"])
	})

	t.Run("failure logs at error", func(t *testing.T) {
		monitor, buf := newTestMonitor(t)

		monitor.JobPerformance(context.Background(), "reindex", 2*time.Second, errors.New("index corrupt"))

		recs := monitorRecords(t, buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "error", recs[0]["level"])
		data := recs[0]["metric_data"].(map[string]any)
		assert.Equal(t, "failed", data["status"])
		assert.Equal(t, "index corrupt", recs[0]["error_message"])
	})
}

func TestTracking(t *testing.T) {
	t.Run("measures between start and end", func(t *testing.T) {
		monitor, _ := newTestMonitor(t)

		ctx := monitor.StartTracking(context.Background(), "enrichment")
		time.Sleep(10 * time.Millisecond)
		elapsed, ok := monitor.EndTracking(ctx, "enrichment")

		require.True(t, ok)
		assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	})

	t.Run("unknown span", func(t *testing.T) {
		monitor, _ := newTestMonitor(t)

		_, ok := monitor.EndTracking(context.Background(), "never started")
		assert.False(t, ok)
	})

	t.Run("spans are independent by name", func(t *testing.T) {
		monitor, _ := newTestMonitor(t)

		ctx := monitor.StartTracking(context.Background(), "outer")
		ctx = monitor.StartTracking(ctx, "inner")

		_, ok := monitor.EndTracking(ctx, "outer")
		assert.True(t, ok)
		_, ok = monitor.EndTracking(ctx, "inner")
		assert.True(t, ok)
	})
}
