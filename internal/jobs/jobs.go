// Package jobs wraps background task execution with lifecycle logging and
// correlation inheritance: the id captured at enqueue time is what links a
// job's records back to the request that scheduled it.
package jobs

import (
	"context"
	"fmt"
	"time"

	"obscore/internal/correlation"
	"obscore/internal/errors"
	"obscore/internal/logging"
	"obscore/internal/observability"
)

// Descriptor is the task metadata handed to the runner by the host's job
// system. CorrelationID and EnqueuedBy are filled in by BeforeEnqueue and
// must travel with the serialized task.
type Descriptor struct {
	Job           string `json:"job"`
	ID            string `json:"id"`
	Queue         string `json:"queue"`
	ArgCount      int    `json:"arg_count"`
	Attempt       int    `json:"attempt"`
	CorrelationID string `json:"correlation_id,omitempty"`
	EnqueuedBy    string `json:"enqueued_by,omitempty"`

	// Critical opts the task into failure alerting regardless of the
	// generic severity classification.
	Critical bool `json:"critical,omitempty"`
}

// Runner instruments background task execution.
type Runner struct {
	logger  *logging.Logger
	monitor *observability.Monitor
	handler *errors.Handler
}

// NewRunner creates a task runner. monitor and handler are optional.
func NewRunner(logger *logging.Logger, monitor *observability.Monitor, handler *errors.Handler) *Runner {
	return &Runner{logger: logger, monitor: monitor, handler: handler}
}

// BeforeEnqueue captures the current correlation id (generating one when
// the caller has none) and the enqueuing identity onto the descriptor.
// Handoff is explicit: nothing is inherited through shared globals.
func (r *Runner) BeforeEnqueue(ctx context.Context, d *Descriptor) {
	if d.CorrelationID == "" {
		if id, ok := correlation.FromContext(ctx); ok {
			d.CorrelationID = id
		} else {
			d.CorrelationID = correlation.Generate()
		}
	}
	if d.EnqueuedBy == "" {
		if f, ok := correlation.FieldsFromContext(ctx); ok {
			d.EnqueuedBy = f.UserID
		}
	}
}

// AfterEnqueue emits the job_enqueued record.
func (r *Runner) AfterEnqueue(ctx context.Context, d *Descriptor) {
	r.logger.Info(correlation.WithID(ctx, d.CorrelationID), "job_enqueued", map[string]any{
		"job":   d.Job,
		"id":    d.ID,
		"queue": d.Queue,
	})
}

// Execute runs the task body under the descriptor's inherited correlation
// id, recording the job lifecycle. The body's error or panic is re-raised
// unchanged so the host's retry/discard policy still applies; for critical
// tasks the failure is additionally forwarded to the error handler.
func (r *Runner) Execute(ctx context.Context, d Descriptor, body func(ctx context.Context) error) error {
	if d.CorrelationID == "" {
		d.CorrelationID = correlation.Generate()
	}
	ctx = correlation.WithID(ctx, d.CorrelationID)
	ctx = correlation.WithFields(ctx, correlation.Fields{UserID: d.EnqueuedBy, Worker: true})
	ctx = observability.WithRequestStats(ctx)

	r.logger.Info(ctx, "job_started", map[string]any{
		"job":     d.Job,
		"id":      d.ID,
		"queue":   d.Queue,
		"attempt": d.Attempt,
		"args":    d.ArgCount,
	})

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("job panic: %v", rec)
			r.finishFailed(ctx, d, time.Since(start), err)
			panic(rec)
		}
	}()

	err := body(ctx)
	duration := time.Since(start)

	if err != nil {
		r.finishFailed(ctx, d, duration, err)
		return err
	}

	completed := map[string]any{
		"job":         d.Job,
		"id":          d.ID,
		"duration_ms": duration.Milliseconds(),
	}
	if stats, ok := observability.RequestStatsFromContext(ctx); ok {
		completed["db"] = stats.Snapshot()
	}
	r.logger.Info(ctx, "job_completed", completed)
	if r.monitor != nil {
		r.monitor.JobPerformance(ctx, d.Job, duration, nil)
	}
	return nil
}

func (r *Runner) finishFailed(ctx context.Context, d Descriptor, duration time.Duration, err error) {
	r.logger.Error(ctx, "job_failed", map[string]any{
		"job":         d.Job,
		"id":          d.ID,
		"attempt":     d.Attempt,
		"duration_ms": duration.Milliseconds(),
		"error": map[string]any{
			"class":   errors.ClassName(err),
			"message": err.Error(),
		},
	})
	if r.monitor != nil {
		r.monitor.JobPerformance(ctx, d.Job, duration, err)
	}
	if d.Critical && r.handler != nil {
		r.handler.HandleError(ctx, err, map[string]any{
			"job":   d.Job,
			"queue": d.Queue,
		})
	}
}
