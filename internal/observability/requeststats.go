package observability

import (
	"context"
	"sync"
	"time"
)

type statsKey struct{}

// RequestStats accumulates database and cache activity over one request's
// lifetime so the completion record can report it. Handlers may run
// concurrent queries for a single request, so access is synchronized.
type RequestStats struct {
	mu            sync.Mutex
	queryCount    int
	queryDuration time.Duration
	cacheHits     int
	cacheMisses   int
}

// WithRequestStats returns ctx carrying a fresh accumulator.
func WithRequestStats(ctx context.Context) context.Context {
	return context.WithValue(ctx, statsKey{}, &RequestStats{})
}

// RequestStatsFromContext returns the request's accumulator, if any.
func RequestStatsFromContext(ctx context.Context) (*RequestStats, bool) {
	s, ok := ctx.Value(statsKey{}).(*RequestStats)
	return s, ok
}

func (s *RequestStats) addQuery(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryCount++
	s.queryDuration += d
}

func (s *RequestStats) addCache(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.cacheHits++
	} else {
		s.cacheMisses++
	}
}

// Snapshot returns the accumulated counters as log metadata.
func (s *RequestStats) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"query_count":       s.queryCount,
		"query_duration_ms": s.queryDuration.Milliseconds(),
		"cache_hits":        s.cacheHits,
		"cache_misses":      s.cacheMisses,
	}
}
