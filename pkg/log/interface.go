// Package log provides a structured logging interface for winefit training runs.
//
// The interface is slog-compatible so callers can log key/value pairs the same
// way whatever backend is installed. The default backend is zerolog (see
// zerolog.go); TestLogger captures output in tests.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ModelNameKey, "RandomForestClassifier",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 178,
//	    log.FeaturesKey, 13,
//	)
package log

import (
	"context"
	"strings"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. For Error, an error value may be
// passed as the first field; backends attach its message and, when the error
// carries one, its stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	// Error logs an error-level message. If the first field is an error it is
	// handled specially:
	//
	//	logger.Error("Model save failed", err, log.OperationKey, "save")
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string ("debug", "info", "warn",
// "error") into a Level. The second return value is false for unknown input.
func ParseLevel(level string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LoggerProvider creates and configures loggers. It allows tests to inject a
// TestLoggerProvider in place of the zerolog-backed default.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
