package alerting

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"obscore/internal/logging"
)

// DispatcherConfig holds configuration for the alert dispatcher's circuit
// breaker.
type DispatcherConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
	SendTimeout      time.Duration
}

// DefaultDispatcherConfig returns breaker settings tuned so a dead sink
// fast-fails instead of stalling the request or job that raised the alert.
func DefaultDispatcherConfig(name string) DispatcherConfig {
	return DispatcherConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
		SendTimeout:      5 * time.Second,
	}
}

// Dispatcher wraps a Sink with a circuit breaker. Dispatch is best-effort:
// every failure is logged and swallowed, never propagated to the caller.
type Dispatcher struct {
	sink        Sink
	breaker     *gobreaker.CircuitBreaker
	logger      *logging.Logger
	sendTimeout time.Duration
}

// NewDispatcher creates a dispatcher around the given sink.
func NewDispatcher(sink Sink, logger *logging.Logger, cfg DispatcherConfig) *Dispatcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(context.Background(), "alert sink breaker state changed", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Dispatcher{
		sink:        sink,
		breaker:     cb,
		logger:      logger,
		sendTimeout: cfg.SendTimeout,
	}
}

// Dispatch sends the message through the breaker and reports whether it
// was delivered. Sink errors and open-breaker rejections are logged at
// error and absorbed here.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) bool {
	if d == nil || d.sink == nil {
		return false
	}
	if msg.Color == "" {
		msg.Color = SeverityColor(msg.Severity)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := d.breaker.Execute(func() (any, error) {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
		defer cancel()
		return nil, d.sink.Send(sendCtx, msg)
	})
	if err != nil {
		d.logger.Error(ctx, "alert dispatch failed", map[string]any{
			"alert_title": msg.Title,
			"severity":    msg.Severity,
			"reason":      err.Error(),
		})
		return false
	}
	return true
}
