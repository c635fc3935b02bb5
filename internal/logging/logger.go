// Package logging implements the structured, redacting logger that every
// other component emits through. Records are one JSON object per line,
// enriched from the correlation context and redacted before serialization.
package logging

import (
	"bytes"
	"context"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"obscore/internal/correlation"
)

// Config controls logger construction.
type Config struct {
	// Environment is the deployment environment (development, test,
	// production) stamped on every record.
	Environment string

	// Service is the logical service name stamped on every record.
	Service string

	// MinLevel filters records below the given rank.
	MinLevel Level

	// Sink receives serialized records. Defaults to os.Stdout.
	Sink io.Writer
}

// Logger formats, redacts and writes structured log records.
// Safe for concurrent use; records from a single goroutine preserve
// program order, no ordering is guaranteed across goroutines.
type Logger struct {
	core     zapcore.Core
	ws       zapcore.WriteSyncer
	level    zap.AtomicLevel
	env      string
	service  string
	hostname string
	pid      int
}

// New creates a logger writing line-delimited JSON to the configured sink.
func New(cfg Config) *Logger {
	sink := cfg.Sink
	if sink == nil {
		sink = os.Stdout
	}
	ws := zapcore.Lock(zapcore.AddSync(sink))
	level := zap.NewAtomicLevelAt(cfg.MinLevel.zap())

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00"),
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	hostname, _ := os.Hostname()

	return &Logger{
		core:     zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, level),
		ws:       ws,
		level:    level,
		env:      cfg.Environment,
		service:  cfg.Service,
		hostname: hostname,
		pid:      os.Getpid(),
	}
}

// Debug emits a record at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, meta map[string]any) {
	l.log(ctx, DebugLevel, msg, meta)
}

// Info emits a record at info level.
func (l *Logger) Info(ctx context.Context, msg string, meta map[string]any) {
	l.log(ctx, InfoLevel, msg, meta)
}

// Warn emits a record at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, meta map[string]any) {
	l.log(ctx, WarnLevel, msg, meta)
}

// Error emits a record at error level.
func (l *Logger) Error(ctx context.Context, msg string, meta map[string]any) {
	l.log(ctx, ErrorLevel, msg, meta)
}

// Fatal emits a record at fatal level. The process is not terminated:
// fatal is a rank, and observability never alters application behavior.
func (l *Logger) Fatal(ctx context.Context, msg string, meta map[string]any) {
	l.log(ctx, FatalLevel, msg, meta)
}

// Log emits a record at an explicit level.
func (l *Logger) Log(ctx context.Context, lvl Level, msg string, meta map[string]any) {
	l.log(ctx, lvl, msg, meta)
}

// LogNamed emits a record at the level named by lvl. Unrecognized names
// log at fatal.
func (l *Logger) LogNamed(ctx context.Context, lvl string, msg string, meta map[string]any) {
	resolved, _ := ParseLevel(lvl)
	l.log(ctx, resolved, msg, meta)
}

// LogOrdinal emits a record at the level given by its ordinal rank
// (0=debug .. 4=fatal). Out-of-range ordinals log at fatal.
func (l *Logger) LogOrdinal(ctx context.Context, ordinal int, msg string, meta map[string]any) {
	resolved, _ := LevelFromOrdinal(ordinal)
	l.log(ctx, resolved, msg, meta)
}

// LogLazy emits a record whose message is produced on demand. The producer
// runs only when the level is enabled, so formatting cost is skipped for
// filtered records. A nil producer yields an empty message.
func (l *Logger) LogLazy(ctx context.Context, lvl Level, produce func() string, meta map[string]any) {
	if !l.Enabled(lvl) {
		return
	}
	msg := ""
	if produce != nil {
		msg = produce()
	}
	l.log(ctx, lvl, msg, meta)
}

// Enabled reports whether records at lvl pass the minimum-level filter.
func (l *Logger) Enabled(lvl Level) bool {
	return l.core.Enabled(lvl.zap())
}

// SetLevel changes the minimum level. Safe for concurrent use; the config
// watcher calls this on live reloads.
func (l *Logger) SetLevel(lvl Level) {
	l.level.SetLevel(lvl.zap())
}

// MinLevel returns the current minimum level.
func (l *Logger) MinLevel() Level {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.InfoLevel:
		return InfoLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

// Silence raises the minimum level to lvl for the dynamic extent of fn,
// restoring the previous level on every exit path.
func (l *Logger) Silence(lvl Level, fn func()) {
	prev := l.level.Level()
	l.level.SetLevel(lvl.zap())
	defer l.level.SetLevel(prev)
	fn()
}

// Sync flushes the sink.
func (l *Logger) Sync() error {
	return l.ws.Sync()
}

func (l *Logger) log(ctx context.Context, lvl Level, msg string, meta map[string]any) {
	zl := lvl.zap()
	if !l.core.Enabled(zl) {
		return
	}

	fields := l.enrich(ctx)
	fields = append(fields, redactedFields(meta)...)

	entry := zapcore.Entry{
		Level:   zl,
		Time:    time.Now(),
		Message: msg,
	}
	if err := l.core.Write(entry, fields); err != nil {
		return
	}
	_ = l.ws.Sync()
}

// enrich builds the fixed enrichment fields, omitting any that are empty.
func (l *Logger) enrich(ctx context.Context) []zapcore.Field {
	fields := make([]zapcore.Field, 0, 10)
	if ctx != nil {
		if id, ok := correlation.FromContext(ctx); ok {
			fields = append(fields, zap.String("correlation_id", id))
		}
		if f, ok := correlation.FieldsFromContext(ctx); ok {
			if f.UserID != "" {
				fields = append(fields, zap.String("user_id", f.UserID))
			}
			if f.SessionID != "" {
				fields = append(fields, zap.String("session_id", f.SessionID))
			}
			if f.Worker {
				fields = append(fields, zap.Bool("worker", true))
			}
		}
	}
	if l.env != "" {
		fields = append(fields, zap.String("environment", l.env))
	}
	if l.service != "" {
		fields = append(fields, zap.String("service", l.service))
	}
	if l.hostname != "" {
		fields = append(fields, zap.String("hostname", l.hostname))
	}
	fields = append(fields, zap.Int("pid", l.pid))
	fields = append(fields, zap.String("task_id", goroutineID()))
	return fields
}

// redactedFields converts the caller's metadata into zap fields after
// redaction. A failure inside redaction degrades to dropping the metadata
// rather than aborting the logging call.
func redactedFields(meta map[string]any) (fields []zapcore.Field) {
	if len(meta) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			fields = []zapcore.Field{zap.Bool("metadata_dropped", true)}
		}
	}()
	redacted := Redact(meta)
	fields = make([]zapcore.Field, 0, len(redacted))
	for k, v := range redacted {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

// goroutineID extracts the current goroutine's id from the runtime stack
// header ("goroutine 42 [running]:"). Used only as a log enrichment field.
func goroutineID() string {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		if _, err := strconv.ParseUint(string(s[:i]), 10, 64); err == nil {
			return string(s[:i])
		}
	}
	return ""
}
