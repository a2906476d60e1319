package log

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// Options configures a zerolog-backed Logger.
type Options struct {
	Level Level
	// Format is "console" (human readable, the default) or "json".
	Format string
	// Writer receives log output. Defaults to os.Stderr.
	Writer io.Writer

	// File, when set, additionally writes JSON logs to a size-rotated file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
	closer io.Closer
}

var _ Logger = (*ZerologLogger)(nil)

// NewZerologLogger builds a logger from opts. Call Close to release the
// rotating file sink when one is configured.
func NewZerologLogger(opts Options) *ZerologLogger {
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	if opts.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	var closer io.Closer
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		}
		out = zerolog.MultiLevelWriter(out, rotating)
		closer = rotating
	}

	logger := zerolog.New(out).
		Level(toZerologLevel(opts.Level)).
		With().
		Timestamp().
		Logger()

	return &ZerologLogger{logger: logger, closer: closer}
}

// Debug implements Logger.Debug.
func (z *ZerologLogger) Debug(msg string, fields ...any) {
	z.emit(z.logger.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (z *ZerologLogger) Info(msg string, fields ...any) {
	z.emit(z.logger.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (z *ZerologLogger) Warn(msg string, fields ...any) {
	z.emit(z.logger.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (z *ZerologLogger) Error(msg string, fields ...any) {
	z.emit(z.logger.Error(), msg, fields)
}

// With implements Logger.With.
func (z *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{
		logger: z.logger.With().Fields(fields).Logger(),
		closer: z.closer,
	}
}

// Enabled implements Logger.Enabled.
func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return z.logger.GetLevel() <= toZerologLevel(level)
}

// SetLevel changes the minimum level in place.
func (z *ZerologLogger) SetLevel(level Level) {
	z.logger = z.logger.Level(toZerologLevel(level))
}

// Close closes the rotating file sink, if any.
func (z *ZerologLogger) Close() error {
	if z.closer == nil {
		return nil
	}
	return z.closer.Close()
}

func (z *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = withError(e, err)
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(msg)
}

// withError attaches the error message, structured detail for winefit
// error types, and the cockroachdb/errors stack when present.
func withError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Err(err)
	var detail zerolog.LogObjectMarshaler
	if errors.As(err, &detail) {
		e = e.Object("error.detail", detail)
	}
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceKey, st)
	}
	return e
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ===========================================================================
// Global logger
// ===========================================================================

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewZerologLogger(Options{Level: LevelInfo})
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the process-wide logger and routes library warnings
// (pkg/errors.Warn) to it.
func SetLogger(l Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()

	werrors.SetZerologWarnFunc(func(w error) {
		l.Warn(w.Error(), w)
	})
}

// ZerologProvider implements LoggerProvider around a ZerologLogger.
type ZerologProvider struct {
	root *ZerologLogger
}

// NewZerologProvider creates a provider from the given options.
func NewZerologProvider(opts Options) *ZerologProvider {
	return &ZerologProvider{root: NewZerologLogger(opts)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	return p.root
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.root.SetLevel(level)
}
