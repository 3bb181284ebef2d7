package utils

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case TRACE:
		return zerolog.TraceLevel
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case CRITICAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a flag value to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

// Logger is a printf-style leveled logger on top of zerolog.
type Logger struct {
	zl     zerolog.Logger
	closer *closeOnce
}

type closeOnce struct {
	once sync.Once
	f    *os.File
	err  error
}

func (c *closeOnce) close() error {
	if c == nil || c.f == nil {
		return nil
	}
	c.once.Do(func() { c.err = c.f.Close() })
	return c.err
}

// NewLogger writes human readable lines to w, tagged with app.
func NewLogger(w io.Writer, app string, minLevel LogLevel) *Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339Nano, NoColor: true}
	zl := zerolog.New(out).Level(minLevel.zerolog()).With().Timestamp().Str("app", app).Logger()
	return &Logger{zl: zl}
}

// NewFileLogger appends JSON lines to filePath and, if alsoStdout is set,
// mirrors them to stdout in console form.
func NewFileLogger(filePath string, minLevel LogLevel, alsoStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	var w io.Writer = f
	if alsoStdout {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano})
	}
	zl := zerolog.New(w).Level(minLevel.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl, closer: &closeOnce{f: f}}, nil
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying key=value on every line.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger(), closer: l.closer}
}

func (l *Logger) Close() error {
	return l.closer.close()
}

func (l *Logger) Enabled(level LogLevel) bool {
	return l.zl.GetLevel() <= level.zerolog()
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	// WithLevel never exits, even at FatalLevel.
	l.zl.WithLevel(level.zerolog()).Msgf(msg, args...)
}

func (l *Logger) Trace(msg string, args ...any)    { l.log(TRACE, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)    { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)     { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)     { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any)    { l.log(ERROR, msg, args...) }
func (l *Logger) Critical(msg string, args ...any) { l.log(CRITICAL, msg, args...) }
