package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"obscore/internal/logging"
)

// WatchLogLevel watches the config file and applies log-level changes to
// the logger without a restart. It blocks until ctx is cancelled; run it
// on its own goroutine. Watcher failures reduce to a log line: live
// reload is a convenience, never a dependency.
func WatchLogLevel(ctx context.Context, path string, logger *logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Warn(ctx, "config reload failed", map[string]any{
					"path":   path,
					"reason": err.Error(),
				})
				continue
			}
			if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok && lvl != logger.MinLevel() {
				logger.SetLevel(lvl)
				logger.Info(ctx, "log level updated", map[string]any{
					"level": lvl.String(),
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "config watcher error", map[string]any{
				"reason": err.Error(),
			})
		}
	}
}
