package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/MGXlab/cirtap/config"
)

// Level is the logging verbosity level.
type Level int

const (
	LevelSilent Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelVerbose
)

func (l Level) String() string {
	switch l {
	case LevelSilent:
		return "silent"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a config level string to a Level. Unknown strings fall
// back to info; config validation catches them earlier.
func ParseLevel(s string) Level {
	switch s {
	case "silent":
		return LevelSilent
	case "error":
		return LevelError
	case "warn":
		return LevelWarn
	case "debug":
		return LevelDebug
	case "verbose":
		return LevelVerbose
	default:
		return LevelInfo
	}
}

// Logger defines the logging interface used across the mirror.
type Logger interface {
	Error(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Verbose(msg string, args ...interface{})

	// With returns a new logger with an additional context field
	With(key string, value interface{}) Logger
}

// DefaultLogger is the default logger implementation. It writes plain
// printf-formatted lines, optionally teeing to a log file.
type DefaultLogger struct {
	mu         *sync.Mutex
	level      Level
	writer     io.Writer
	fields     []field
	addSource  bool
	timeFormat string
}

type field struct {
	key   string
	value interface{}
}

// New creates a logger from configuration, writing to stderr and, when
// configured, a log file.
func New(cfg *config.LoggerConfig) (Logger, error) {
	if cfg == nil {
		cfg = &config.LoggerConfig{}
	}
	cfg.ApplyDefaults()

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}
	return NewWithWriter(cfg, w), nil
}

// NewWithWriter creates a logger with a custom writer (useful for testing).
func NewWithWriter(cfg *config.LoggerConfig, writer io.Writer) Logger {
	if cfg == nil {
		cfg = &config.LoggerConfig{}
	}
	cfg.ApplyDefaults()

	return &DefaultLogger{
		mu:         &sync.Mutex{},
		level:      ParseLevel(cfg.Level),
		writer:     writer,
		addSource:  cfg.AddSource,
		timeFormat: cfg.TimeFormat,
	}
}

func (l *DefaultLogger) log(level Level, msg string, args ...interface{}) {
	if l.level == LevelSilent || level > l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var output string
	if l.timeFormat != "" {
		output += time.Now().Format(l.timeFormat) + " "
	}
	output += fmt.Sprintf("[%s] ", level)

	if l.addSource {
		if _, file, line, ok := runtime.Caller(2); ok {
			output += fmt.Sprintf("%s:%d ", file, line)
		}
	}

	for _, f := range l.fields {
		output += fmt.Sprintf("%s=%v ", f.key, f.value)
	}

	if len(args) > 0 {
		output += fmt.Sprintf(msg, args...)
	} else {
		output += msg
	}

	fmt.Fprintln(l.writer, output)
}

func (l *DefaultLogger) Error(msg string, args ...interface{})   { l.log(LevelError, msg, args...) }
func (l *DefaultLogger) Warn(msg string, args ...interface{})    { l.log(LevelWarn, msg, args...) }
func (l *DefaultLogger) Info(msg string, args ...interface{})    { l.log(LevelInfo, msg, args...) }
func (l *DefaultLogger) Debug(msg string, args ...interface{})   { l.log(LevelDebug, msg, args...) }
func (l *DefaultLogger) Verbose(msg string, args ...interface{}) { l.log(LevelVerbose, msg, args...) }

// With returns a new logger with an additional context field. The clone
// shares the mutex and writer so concurrent loggers do not interleave lines.
func (l *DefaultLogger) With(key string, value interface{}) Logger {
	clone := *l
	clone.fields = append(append([]field(nil), l.fields...), field{key, value})
	return &clone
}

// NoOpLogger is a logger that does nothing (useful for tests).
type NoOpLogger struct{}

// NewNoOp creates a no-op logger.
func NewNoOp() Logger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Error(msg string, args ...interface{})     {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})      {}
func (n *NoOpLogger) Info(msg string, args ...interface{})      {}
func (n *NoOpLogger) Debug(msg string, args ...interface{})     {}
func (n *NoOpLogger) Verbose(msg string, args ...interface{})   {}
func (n *NoOpLogger) With(key string, value interface{}) Logger { return n }
