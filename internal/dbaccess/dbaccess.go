// Package dbaccess subscribes to the persistence layer's query execution
// notifications and turns them into metrics and repeated-query-pattern
// warnings. The persistence collaborator exposes an explicit notification
// stream; nothing here reaches into its internals.
package dbaccess

import (
	"context"
	"time"

	"obscore/internal/logging"
	"obscore/internal/observability"
)

// PoolStats is a snapshot of a connection pool's occupancy.
type PoolStats struct {
	InUse   int `json:"in_use"`
	Idle    int `json:"idle"`
	Waiting int `json:"waiting"`
}

// QueryEvent is one query-execution notification from the persistence
// layer.
type QueryEvent struct {
	SQL      string
	Duration time.Duration
	Cached   bool
	Pool     *PoolStats
}

// Notifier is the subscription surface the persistence collaborator
// exposes. Subscribe is called once at startup.
type Notifier interface {
	Subscribe(fn func(ctx context.Context, ev QueryEvent))
}

// Instrumentation forwards query notifications to the performance monitor
// and runs the repeated-query-pattern heuristic.
type Instrumentation struct {
	logger   *logging.Logger
	monitor  *observability.Monitor
	patterns *patternTracker
}

// New creates the data access instrumentation.
func New(logger *logging.Logger, monitor *observability.Monitor) *Instrumentation {
	return &Instrumentation{
		logger:   logger,
		monitor:  monitor,
		patterns: newPatternTracker(defaultPatternThreshold, defaultPatternWindow),
	}
}

// Attach subscribes to the notifier's query stream.
func (i *Instrumentation) Attach(n Notifier) {
	n.Subscribe(i.HandleQuery)
}

// HandleQuery processes one query notification. Failures inside the
// handler degrade to a log line; they never reach the persistence layer.
func (i *Instrumentation) HandleQuery(ctx context.Context, ev QueryEvent) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error(ctx, "query instrumentation failure", map[string]any{
				"panic": r,
			})
		}
	}()

	i.monitor.QueryExecuted(ctx, ev.SQL, ev.Duration, ev.Cached)

	if ev.Cached || observability.InternalStatement(ev.SQL) {
		return
	}
	if count, repeated := i.patterns.record(ctx, ev.SQL); repeated {
		i.logger.Warn(ctx, "repeated query pattern detected", map[string]any{
			"metric_type": "n_plus_one",
			"metric_data": map[string]any{
				"query": observability.SanitizeSQL(ev.SQL),
				"count": count,
			},
		})
	}
}
