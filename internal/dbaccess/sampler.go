package dbaccess

import (
	"context"
	"time"

	"obscore/internal/logging"
)

// DefaultSampleInterval is how often the pool sampler reports.
const DefaultSampleInterval = 30 * time.Second

// PoolStatsProvider exposes the connection pool's current occupancy.
type PoolStatsProvider interface {
	PoolStats() PoolStats
}

// Sampler periodically logs connection pool statistics. It runs on its
// own goroutine; a panicking provider is logged and the loop keeps going.
type Sampler struct {
	logger   *logging.Logger
	provider PoolStatsProvider
	interval time.Duration
}

// NewSampler creates a pool sampler. A non-positive interval falls back
// to the default.
func NewSampler(logger *logging.Logger, provider PoolStatsProvider, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{logger: logger, provider: provider, interval: interval}
}

// Run samples until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "pool sampler failure", map[string]any{
				"panic": r,
			})
		}
	}()

	stats := s.provider.PoolStats()
	s.logger.Info(ctx, "connection pool stats", map[string]any{
		"metric_type": "connection_pool",
		"metric_data": map[string]any{
			"in_use":  stats.InUse,
			"idle":    stats.Idle,
			"waiting": stats.Waiting,
		},
	})
}
