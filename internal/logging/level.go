package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is the severity rank of a log record.
// Ranks order debug < info < warn < error < fatal; a record is emitted
// iff its rank is at or above the configured minimum.
type Level int8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "unknown"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.FatalLevel
	}
}

// ParseLevel resolves a level name to a Level. Unrecognized names resolve
// to FatalLevel with ok=false, so misrouted calls surface loudly instead
// of being dropped.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return FatalLevel, false
	}
}

// LevelFromOrdinal resolves a numeric severity (0=debug .. 4=fatal) to a
// Level. Out-of-range ordinals resolve to FatalLevel with ok=false.
func LevelFromOrdinal(n int) (Level, bool) {
	if n < int(DebugLevel) || n > int(FatalLevel) {
		return FatalLevel, false
	}
	return Level(n), true
}
