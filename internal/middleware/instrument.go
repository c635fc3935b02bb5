// Package middleware provides the HTTP request instrumentation boundary:
// it establishes the correlation context, emits the request lifecycle
// records, and feeds the request metrics collectors.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"obscore/internal/correlation"
	"obscore/internal/logging"
	"obscore/internal/observability"
)

// Config configures request instrumentation.
type Config struct {
	Logger    *logging.Logger
	Collector *observability.Collector // optional Prometheus side

	// ExcludedPaths are path prefixes (health checks, static assets) for
	// which instrumentation is bypassed entirely.
	ExcludedPaths []string

	// ResolveUser extracts the authenticated user and session from the
	// request. Optional; the auth layer is an external collaborator.
	ResolveUser func(r *http.Request) (userID, sessionID string)
}

// DefaultExcludedPaths skips the endpoints that would otherwise drown the
// log in probe noise.
var DefaultExcludedPaths = []string{"/healthz", "/health", "/metrics", "/static/", "/favicon.ico"}

// Instrument returns the request instrumentation middleware. Each request
// runs under its own correlation context carried on the request context;
// nothing outlives the request, so a reused connection or pooled goroutine
// never observes a previous request's identifiers.
func Instrument(cfg Config) func(http.Handler) http.Handler {
	excluded := cfg.ExcludedPaths
	if excluded == nil {
		excluded = DefaultExcludedPaths
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedPath(excluded, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			id, ok := correlation.ExtractFromCarrier(r.Header)
			if !ok {
				id = correlation.Generate()
			}

			ctx := correlation.WithID(r.Context(), id)
			fields := correlation.Fields{
				RequestPath:   r.URL.Path,
				RequestMethod: r.Method,
				RemoteIP:      remoteIP(r),
			}
			if cfg.ResolveUser != nil {
				fields.UserID, fields.SessionID = cfg.ResolveUser(r)
			}
			ctx = correlation.WithFields(ctx, fields)
			ctx = observability.WithRequestStats(ctx)

			// One-shot forwarding of the correlation id to the external
			// tracer, when a span is active.
			if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
				span.SetAttributes(attribute.String("correlation_id", id))
			}

			// Response header must go out before downstream writes the
			// status line.
			correlation.AddToCarrier(w.Header(), id)

			start := time.Now()
			startAlloc := heapAlloc()
			cfg.Logger.Info(ctx, "request_started", map[string]any{
				"request": map[string]any{
					"method":     r.Method,
					"path":       r.URL.Path,
					"params":     queryParams(r),
					"user_agent": r.UserAgent(),
					"referer":    r.Referer(),
					"remote_ip":  fields.RemoteIP,
				},
			})

			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					cfg.Logger.Error(ctx, "request_failed", map[string]any{
						"request": map[string]any{
							"method": r.Method,
							"path":   r.URL.Path,
						},
						"error": map[string]any{
							"class":     fmt.Sprintf("%T", rec),
							"message":   fmt.Sprint(rec),
							"backtrace": shortBacktrace(),
						},
						"duration_ms": time.Since(start).Milliseconds(),
					})
					recordMetrics(cfg.Collector, r, http.StatusInternalServerError, start)
					// Observe, never swallow: the host's own error handling
					// still applies.
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))

			duration := time.Since(start)
			completed := map[string]any{
				"request": map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
				},
				"response": map[string]any{
					"status":     ww.status,
					"size_bytes": ww.bytesWritten,
				},
				"duration_ms": duration.Milliseconds(),
			}
			if stats, ok := observability.RequestStatsFromContext(ctx); ok {
				completed["db"] = stats.Snapshot()
			}
			completed["memory"] = map[string]any{
				// Negative when a GC ran mid-request.
				"alloc_delta_bytes": int64(heapAlloc()) - int64(startAlloc),
			}
			cfg.Logger.Info(ctx, "request_completed", completed)
			recordMetrics(cfg.Collector, r, ww.status, start)
		})
	}
}

func excludedPath(excluded []string, path string) bool {
	for _, p := range excluded {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
		} else if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// queryParams flattens the query string into log metadata. Sensitive keys
// and credential-shaped values are handled by the logger's redaction pass.
func queryParams(r *http.Request) map[string]any {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	params := make(map[string]any, len(q))
	for name, values := range q {
		if len(values) == 1 {
			params[name] = values[0]
		} else {
			params[name] = append([]string(nil), values...)
		}
	}
	return params
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func recordMetrics(collector *observability.Collector, r *http.Request, status int, start time.Time) {
	if collector == nil {
		return
	}
	route := routePattern(r)
	collector.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	collector.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// heapAlloc returns the bytes of currently allocated heap objects.
func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc
}

// shortBacktrace returns the first few stack lines for the failure record.
func shortBacktrace() []string {
	lines := strings.Split(string(debug.Stack()), "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	return lines
}

// responseWriter captures the response status and body size.
type responseWriter struct {
	http.ResponseWriter
	status        int
	bytesWritten  int64
	headerWritten bool
}

func (w *responseWriter) WriteHeader(status int) {
	if !w.headerWritten {
		w.status = status
		w.headerWritten = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}
