// Command worker runs the background side of the instrumentation: a job
// runner executing a periodic heartbeat task, memory sampling, and live
// log-level reloads from the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"obscore/internal/alerting"
	"obscore/internal/config"
	apperrors "obscore/internal/errors"
	"obscore/internal/jobs"
	"obscore/internal/logging"
	"obscore/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	interval := flag.Duration("interval", time.Minute, "heartbeat job interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	minLevel, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(logging.Config{
		Environment: cfg.Environment,
		Service:     cfg.Service + "-worker",
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

	runner := jobs.NewRunner(logger, monitor, handler)

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

	logger.Info(ctx, "worker starting", map[string]any{
		"heartbeat_interval": interval.String(),
	})

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "worker stopped", nil)
			return
		case <-ticker.C:
			attempt++
			d := jobs.Descriptor{
				Job:     "heartbeat",
				ID:      uuid.New().String(),
				Queue:   "default",
				Attempt: attempt,
			}
			runner.BeforeEnqueue(ctx, &d)
			runner.AfterEnqueue(ctx, &d)
			_ = runner.Execute(ctx, d, func(ctx context.Context) error {
				monitor.MemorySnapshot(ctx)
				return nil
			})
		}
	}
}
