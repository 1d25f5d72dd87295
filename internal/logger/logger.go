package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level.
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
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name; unknown names default to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Logger is a leveled, prefixed logger writing to a single destination.
type Logger struct {
	mu     sync.RWMutex
	level  Level
	out    *log.Logger
	prefix string
	file   *os.File
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(level Level, logPath string) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(level, logPath, "")
	})
	return err
}

// New creates a logger writing to logPath. An empty path or LevelNone
// yields a logger that discards everything.
func New(level Level, logPath, prefix string) (*Logger, error) {
	if level == LevelNone || logPath == "" {
		return &Logger{level: LevelNone, out: log.New(io.Discard, "", 0), prefix: prefix}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{level: level, out: log.New(file, "", 0), prefix: prefix, file: file}, nil
}

// NewWriter creates a logger writing to w. Used by tests and the CLI.
func NewWriter(level Level, w io.Writer, prefix string) *Logger {
	return &Logger{level: level, out: log.New(w, "", 0), prefix: prefix}
}

// Global returns the global logger, or a discarding logger when Init was
// never called.
func Global() *Logger {
	if globalLogger == nil {
		globalLogger = &Logger{level: LevelNone, out: log.New(io.Discard, "", 0)}
	}
	return globalLogger
}

// WithPrefix returns a logger sharing the same destination with an
// additional prefix segment.
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	joined := prefix
	if l.prefix != "" {
		joined = l.prefix + ":" + prefix
	}
	return &Logger{level: l.level, out: l.out, prefix: joined, file: l.file}
}

// SetLevel changes the logging level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.level == LevelNone || level < l.level {
		return
	}

	prefix := ""
	if l.prefix != "" {
		prefix = "[" + l.prefix + "] "
	}

	l.out.Printf("%s [%s] %s%s",
		time.Now().Format("2006-01-02 15:04:05.000"), level.String(), prefix,
		fmt.Sprintf(format, args...))
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

// Error logs an error.
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Debug logs a debug message on the global logger.
func Debug(format string, args ...interface{}) { Global().Debug(format, args...) }

// Info logs an informational message on the global logger.
func Info(format string, args ...interface{}) { Global().Info(format, args...) }

// Warn logs a warning on the global logger.
func Warn(format string, args ...interface{}) { Global().Warn(format, args...) }

// Error logs an error on the global logger.
func Error(format string, args ...interface{}) { Global().Error(format, args...) }
