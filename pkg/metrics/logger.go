package metrics

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent // Disables all logging
)

// String returns the level name.
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
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level string. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "SILENT", "OFF", "NONE":
		return LevelSilent
	default:
		return LevelInfo
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Fields represents structured log fields.
type Fields map[string]interface{}

// Format specifies the log output format.
type Format int

const (
	FormatText Format = iota // key=value lines
	FormatJSON               // one JSON object per line
)

// Logger is a leveled structured logger backed by logrus. Derived loggers
// (With, Named) share the output but carry their own level.
type Logger struct {
	base   *logrus.Logger
	level  atomic.Int32
	fields Fields
	name   string

	// options collected before the base logger is built
	out      io.Writer
	format   Format
	timeFunc func() time.Time
}

// LoggerOption configures a logger.
type LoggerOption func(*Logger)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.out = w
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *Logger) {
		l.level.Store(int32(level))
	}
}

// WithFormat sets the output format.
func WithFormat(format Format) LoggerOption {
	return func(l *Logger) {
		l.format = format
	}
}

// WithFields sets default fields for all log entries.
func WithFields(fields Fields) LoggerOption {
	return func(l *Logger) {
		l.fields = fields
	}
}

// WithName sets the logger name.
func WithName(name string) LoggerOption {
	return func(l *Logger) {
		l.name = name
	}
}

// NewLogger creates a new logger with the given options.
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{
		out:      os.Stdout,
		format:   FormatText,
		fields:   make(Fields),
		timeFunc: time.Now,
	}
	l.level.Store(int32(LevelInfo))
	for _, opt := range opts {
		opt(l)
	}

	base := logrus.New()
	base.SetOutput(l.out)
	base.SetLevel(logrus.DebugLevel)
	if l.format == FormatJSON {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  "15:04:05.000",
			DisableColors:    true,
			DisableSorting:   false,
			QuoteEmptyFields: true,
		})
	}
	l.base = base
	return l
}

func (l *Logger) derive(fields Fields, name string) *Logger {
	n := &Logger{
		base:     l.base,
		fields:   fields,
		name:     name,
		out:      l.out,
		format:   l.format,
		timeFunc: l.timeFunc,
	}
	n.level.Store(l.level.Load())
	return n
}

// With returns a new logger with additional fields.
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return l.derive(merged, l.name)
}

// Named returns a new logger with the given name appended to the current one.
func (l *Logger) Named(name string) *Logger {
	newName := name
	if l.name != "" {
		newName = l.name + "." + name
	}
	return l.derive(l.fields, newName)
}

// SetLevel changes the logging level of this logger.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	cur := Level(l.level.Load())
	return cur != LevelSilent && level >= cur
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(LevelError, msg, fields...)
}

func (l *Logger) log(level Level, msg string, extra ...Fields) {
	if !l.Enabled(level) {
		return
	}

	all := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		all[k] = v
	}
	for _, f := range extra {
		for k, v := range f {
			all[k] = v
		}
	}
	if l.name != "" {
		all["logger"] = l.name
	}

	l.base.WithFields(all).WithTime(l.timeFunc()).Log(level.logrus(), msg)
}

// --- Global Logger ---

var (
	globalLogger   *Logger
	globalLoggerMu sync.RWMutex
)

func init() {
	globalLogger = NewLogger(WithOutput(os.Stderr))
}

// SetLogger sets the global logger.
func SetLogger(l *Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = l
}

// GetLogger returns the global logger.
func GetLogger() *Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// Debug logs at debug level using the global logger.
func Debug(msg string, fields ...Fields) {
	GetLogger().Debug(msg, fields...)
}

// Info logs at info level using the global logger.
func Info(msg string, fields ...Fields) {
	GetLogger().Info(msg, fields...)
}

// Warn logs at warn level using the global logger.
func Warn(msg string, fields ...Fields) {
	GetLogger().Warn(msg, fields...)
}

// Error logs at error level using the global logger.
func Error(msg string, fields ...Fields) {
	GetLogger().Error(msg, fields...)
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return NewLogger(WithOutput(io.Discard), WithLevel(LevelSilent))
}

// TestLogger returns a logger suitable for testing (debug level, text format).
func TestLogger(w io.Writer) *Logger {
	return NewLogger(
		WithOutput(w),
		WithLevel(LevelDebug),
		WithFormat(FormatText),
	)
}

// ProductionLogger returns a logger suitable for production (info level, JSON format).
func ProductionLogger(w io.Writer) *Logger {
	return NewLogger(
		WithOutput(w),
		WithLevel(LevelInfo),
		WithFormat(FormatJSON),
	)
}
