// Command api runs an instrumented HTTP server: every request passes
// through the correlation and performance middleware, and the Prometheus
// registry is exposed on /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"obscore/internal/alerting"
	"obscore/internal/config"
	apperrors "obscore/internal/errors"
	"obscore/internal/logging"
	"obscore/internal/middleware"
	"obscore/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	minLevel, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(logging.Config{
		Environment: cfg.Environment,
		Service:     cfg.Service,
		MinLevel:    minLevel,
	})
	defer logger.Sync()

	collector := observability.NewCollector("obscore")
	monitor := observability.NewMonitor(logger, collector, observability.MonitorConfig{
		SlowQueryThreshold:    cfg.SlowQueryThreshold(),
		SlowExternalThreshold: cfg.SlowExternalThreshold(),
		MemoryThresholdBytes:  uint64(cfg.MemoryThresholdMB) * 1024 * 1024,
	})

	var dispatcher *alerting.Dispatcher
	if cfg.AlertSinkURL != "" {
		sink := alerting.NewWebhookSink(cfg.AlertSinkURL, nil)
		dispatcher = alerting.NewDispatcher(sink, logger, alerting.DefaultDispatcherConfig("alert-sink"))
	}

	handler := apperrors.NewHandler(apperrors.HandlerConfig{
		Logger:      logger,
		Dispatcher:  dispatcher,
		Collector:   collector,
		Environment: cfg.Environment,
		Cooldown:    cfg.AlertCooldown(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *configPath != "" {
		go func() {
			if err := config.WatchLogLevel(ctx, *configPath, logger); err != nil {
				logger.Warn(ctx, "config watcher stopped", map[string]any{
					"reason": err.Error(),
				})
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(middleware.Instrument(middleware.Config{
		Logger:        logger,
		Collector:     collector,
		ExcludedPaths: cfg.ExcludedPaths,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(collector.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/debug/memory", func(w http.ResponseWriter, req *http.Request) {
		monitor.MemorySnapshot(req.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/debug/error", func(w http.ResponseWriter, req *http.Request) {
		handler.HandleError(req.Context(), apperrors.Internal("DEBUG_ERROR", "debug error endpoint hit"), map[string]any{
			"endpoint": req.URL.Path,
		})
		w.WriteHeader(http.StatusAccepted)
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "server starting", map[string]any{
			"addr": *addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "server failed", map[string]any{
				"reason": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown failed", map[string]any{
			"reason": err.Error(),
		})
	}
	logger.Info(context.Background(), "server stopped", nil)
}
