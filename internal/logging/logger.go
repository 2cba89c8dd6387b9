// Package logging provides structured logging with correlation ID propagation.
//
// Loggers are thin wrappers around zerolog. The wrapper keeps a small,
// map-based field API so call sites do not depend on zerolog directly.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general information messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the output format for log messages.
type Format int

const (
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = iota
	// FormatText outputs logs as human-readable text.
	FormatText
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Field names used in every entry.
const (
	CorrelationIDField = "correlationId"
	TraceIDField       = "traceId"
)

// Logger provides structured logging with configurable levels and formats.
type Logger struct {
	mu            sync.RWMutex
	zl            zerolog.Logger
	level         Level
	addCaller     bool
	callerSkip    int
	correlationID string
	traceID       string
}

// Config holds configuration for a Logger.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddCaller  bool
	CallerSkip int
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	w := zerolog.SyncWriter(out)
	if cfg.Format == FormatText {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}
	return &Logger{
		zl:         zerolog.New(w).With().Timestamp().Logger(),
		level:      cfg.Level,
		addCaller:  cfg.AddCaller,
		callerSkip: cfg.CallerSkip,
	}
}

// DefaultLogger returns a logger with default settings.
func DefaultLogger() *Logger {
	return New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: os.Stderr,
	})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// SetLevel updates the minimum logging level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level.
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.GetLevel()
}

func (l *Logger) clone(zl zerolog.Logger) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		zl:            zl,
		level:         l.level,
		addCaller:     l.addCaller,
		callerSkip:    l.callerSkip,
		correlationID: l.correlationID,
		traceID:       l.traceID,
	}
}

// With returns a new Logger with the given fields added.
func (l *Logger) With(fields map[string]any) *Logger {
	return l.clone(l.zl.With().Fields(fields).Logger())
}

// WithCorrelationID returns a new Logger with the correlation ID set.
func (l *Logger) WithCorrelationID(id string) *Logger {
	n := l.clone(l.zl)
	n.correlationID = id
	return n
}

// WithTraceID returns a new Logger with the trace ID set.
func (l *Logger) WithTraceID(id string) *Logger {
	n := l.clone(l.zl)
	n.traceID = id
	return n
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.log(LevelDebug, msg, nil)
}

// Debugf logs a debug message with fields.
func (l *Logger) Debugf(msg string, fields map[string]any) {
	l.log(LevelDebug, msg, fields)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.log(LevelInfo, msg, nil)
}

// Infof logs an info message with fields.
func (l *Logger) Infof(msg string, fields map[string]any) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.log(LevelWarn, msg, nil)
}

// Warnf logs a warning message with fields.
func (l *Logger) Warnf(msg string, fields map[string]any) {
	l.log(LevelWarn, msg, fields)
}

// Error logs an error message.
func (l *Logger) Error(msg string) {
	l.log(LevelError, msg, nil)
}

// Errorf logs an error message with fields.
func (l *Logger) Errorf(msg string, fields map[string]any) {
	l.log(LevelError, msg, fields)
}

func (l *Logger) log(level Level, msg string, fields map[string]any) {
	l.mu.RLock()
	current := l.level
	addCaller := l.addCaller
	callerSkip := l.callerSkip
	correlationID := l.correlationID
	traceID := l.traceID
	l.mu.RUnlock()

	if level < current {
		return
	}

	ev := l.zl.WithLevel(level.zerolog())
	if correlationID != "" {
		ev = ev.Str(CorrelationIDField, correlationID)
	}
	if traceID != "" {
		ev = ev.Str(TraceIDField, traceID)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	if addCaller {
		// Frames: log, the exported level method, its caller.
		ev = ev.Caller(2 + callerSkip)
	}
	ev.Msg(msg)
}
