package errors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obscore/internal/alerting"
	"obscore/internal/correlation"
	"obscore/internal/logging"
	"obscore/internal/observability"
)

const (
	// DefaultCooldown bounds alert frequency per fingerprint.
	DefaultCooldown = 5 * time.Minute

	// DefaultCacheMaxAge bounds how long dedup entries are kept.
	DefaultCacheMaxAge = time.Hour

	backtraceDepth = 5
)

// HandlerConfig configures the error handling engine.
type HandlerConfig struct {
	Logger      *logging.Logger
	Dispatcher  *alerting.Dispatcher     // nil disables alert dispatch
	Collector   *observability.Collector // optional alert counters
	Environment string                   // alerts dispatch only in "production"
	Cooldown    time.Duration
	CacheMaxAge time.Duration
}

// Handler classifies failures, logs them with full context, and routes
// deduplicated alerts for the severe ones. Every entry point is fail-open:
// an internal fault degrades to reduced observability, never to a panic in
// the caller.
type Handler struct {
	logger     *logging.Logger
	dispatcher *alerting.Dispatcher
	collector  *observability.Collector
	env        string
	cooldown   time.Duration
	cache      *alertCache
}

// NewHandler creates an error handler.
func NewHandler(cfg HandlerConfig) *Handler {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	maxAge := cfg.CacheMaxAge
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &Handler{
		logger:     cfg.Logger,
		dispatcher: cfg.Dispatcher,
		collector:  cfg.Collector,
		env:        cfg.Environment,
		cooldown:   cooldown,
		cache:      newAlertCache(maxAge),
	}
}

// HandleError classifies err, emits an error record enriched with the
// explicit extra context, and dispatches a deduplicated alert when the
// severity warrants one.
func (h *Handler) HandleError(ctx context.Context, err error, extra map[string]any) {
	defer func() {
		if r := recover(); r != nil && h.logger != nil {
			h.logger.Error(ctx, "error handler internal failure", map[string]any{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	if err == nil {
		return
	}

	severity := Classify(err)
	fingerprint := Fingerprint(err)

	alertSent := false
	if severity.Alertable() && h.alertingEnabled() {
		if reserved, ok := h.cache.Allow(fingerprint, h.cooldown); ok {
			alertSent = h.dispatcher.Dispatch(ctx, h.alertMessage(ctx, err, severity, fingerprint))
			if alertSent {
				if h.collector != nil {
					h.collector.AlertsDispatched.Inc()
				}
			} else {
				// Suppression applies to alerts that were sent; a failed
				// dispatch must leave the next occurrence free to retry.
				h.cache.Release(fingerprint, reserved)
			}
		} else if h.collector != nil {
			h.collector.AlertsDeduplicated.Inc()
		}
	}

	meta := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		meta[k] = v
	}
	meta["error"] = errorDetail(err, fingerprint)
	meta["severity"] = string(severity)
	meta["alert_sent"] = alertSent

	h.logger.Error(ctx, "error handled", meta)
}

// alertingEnabled gates dispatch on execution mode and sink presence.
// Development and test runs never page anyone.
func (h *Handler) alertingEnabled() bool {
	return h.dispatcher != nil && h.env == "production"
}

func (h *Handler) alertMessage(ctx context.Context, err error, severity Severity, fingerprint string) alerting.Message {
	fields := map[string]string{
		"class":       ClassName(err),
		"fingerprint": fingerprint,
		"location":    errorLocation(err),
	}
	if id, ok := correlation.FromContext(ctx); ok {
		fields["correlation_id"] = id
	}
	if f, ok := correlation.FieldsFromContext(ctx); ok && f.UserID != "" {
		fields["user_id"] = f.UserID
	}
	return alerting.Message{
		Title:       fmt.Sprintf("%s error: %s", severity, ClassName(err)),
		Severity:    string(severity),
		Fields:      fields,
		Environment: h.env,
		Timestamp:   time.Now().UTC(),
	}
}

// errorDetail builds the error.* record fields: class, message, truncated
// backtrace and fingerprint.
func errorDetail(err error, fingerprint string) map[string]any {
	detail := map[string]any{
		"class":       ClassName(err),
		"message":     err.Error(),
		"fingerprint": fingerprint,
	}

	var appErr *AppError
	if errors.As(err, &appErr) && len(appErr.Stack) > 0 {
		stack := appErr.Stack
		if len(stack) > backtraceDepth {
			stack = stack[:backtraceDepth]
		}
		detail["backtrace"] = append([]string(nil), stack...)
	}
	if cause := errors.Unwrap(err); cause != nil {
		detail["cause"] = cause.Error()
	}
	return detail
}

// errorLocation returns the first in-application frame, or the class name
// when no stack is available.
func errorLocation(err error) string {
	if frame := firstAppFrame(err); frame != "" {
		return frame
	}
	return ClassName(err)
}
