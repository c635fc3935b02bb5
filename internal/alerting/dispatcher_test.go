package alerting

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obscore/internal/logging"
)

func testLogger(t *testing.T) (*logging.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return logging.New(logging.Config{
		Environment: "test",
		Service:     "obscore-test",
		MinLevel:    logging.DebugLevel,
		Sink:        buf,
	}), buf
}

func TestDispatcher(t *testing.T) {
	t.Run("delivers through the sink", func(t *testing.T) {
		logger, _ := testLogger(t)
		var got Message
		sink := SinkFunc(func(_ context.Context, msg Message) error {
			got = msg
			return nil
		})
		d := NewDispatcher(sink, logger, DefaultDispatcherConfig("test"))

		ok := d.Dispatch(context.Background(), Message{
			Title:    "database unreachable",
			Severity: "critical",
		})

		require.True(t, ok)
		assert.Equal(t, "database unreachable", got.Title)
		assert.Equal(t, SeverityColor("critical"), got.Color)
		assert.False(t, got.Timestamp.IsZero())
	})

	t.Run("sink failure is absorbed and logged", func(t *testing.T) {
		logger, buf := testLogger(t)
		sink := SinkFunc(func(context.Context, Message) error {
			return errors.New("sink down")
		})
		d := NewDispatcher(sink, logger, DefaultDispatcherConfig("test"))

		ok := d.Dispatch(context.Background(), Message{Title: "t", Severity: "high"})

		assert.False(t, ok)
		assert.Contains(t, buf.String(), "alert dispatch failed")
	})

	t.Run("breaker opens after repeated failures", func(t *testing.T) {
		logger, buf := testLogger(t)
		calls := 0
		sink := SinkFunc(func(context.Context, Message) error {
			calls++
			return errors.New("sink down")
		})
		d := NewDispatcher(sink, logger, DefaultDispatcherConfig("test"))

		for i := 0; i < 10; i++ {
			d.Dispatch(context.Background(), Message{Title: "t", Severity: "high"})
		}

		// Once open, dispatches fast-fail without reaching the sink.
		assert.Less(t, calls, 10)
		assert.Contains(t, buf.String(), "breaker state changed")
	})

	t.Run("dispatch survives an already cancelled caller context", func(t *testing.T) {
		logger, _ := testLogger(t)
		delivered := false
		sink := SinkFunc(func(ctx context.Context, _ Message) error {
			delivered = true
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		})
		d := NewDispatcher(sink, logger, DefaultDispatcherConfig("test"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ok := d.Dispatch(ctx, Message{Title: "t", Severity: "high"})

		assert.True(t, ok)
		assert.True(t, delivered)
	})

	t.Run("nil dispatcher is safe", func(t *testing.T) {
		var d *Dispatcher
		assert.False(t, d.Dispatch(context.Background(), Message{}))
	})
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, "#d00000", SeverityColor("critical"))
	assert.Equal(t, "#e85d04", SeverityColor("high"))
	assert.Equal(t, "#ffba08", SeverityColor("medium"))
	assert.Equal(t, "#6c757d", SeverityColor("low"))
	assert.Equal(t, "#6c757d", SeverityColor("anything"))
}

func TestDefaultDispatcherConfig(t *testing.T) {
	cfg := DefaultDispatcherConfig("alerts")
	assert.Equal(t, "alerts", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	assert.NotZero(t, cfg.FailureThreshold)
}
