package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

// Options configures the process-wide logger. Zero values fall back to the
// environment (LOG_LEVEL, DEBUG) and to os.Stdout.
type Options struct {
	Level   string
	Output  io.Writer
	Console *bool
}

var (
	mu           sync.RWMutex
	base         zerolog.Logger
	currentLevel LogLevel
	configured   bool
)

// Configure replaces the process-wide logger. It is safe to call more than
// once; the last call wins.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	level := levelFromEnv()
	if opts.Level != "" {
		if parsed, ok := ParseLevel(opts.Level); ok {
			level = parsed
		}
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	console := isTerminal(out)
	if opts.Console != nil {
		console = *opts.Console
	}
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006/01/02 15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	currentLevel = level
	base = zerolog.New(out).Level(level.zerolog()).With().Timestamp().Logger()
	configured = true
}

func logger() zerolog.Logger {
	mu.RLock()
	if configured {
		defer mu.RUnlock()
		return base
	}
	mu.RUnlock()

	Configure(Options{})

	mu.RLock()
	defer mu.RUnlock()
	return base
}

// levelFromEnv honors DEBUG first, then LOG_LEVEL, defaulting to info.
func levelFromEnv() LogLevel {
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}
	if level, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		return level
	}
	return LevelInfo
}

// ParseLevel converts a level name to a LogLevel. "warning" is accepted as an
// alias for "warn".
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (l LogLevel) zerolog() zerolog.Level {
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

// GetLevel returns the current log level
func GetLevel() LogLevel {
	_ = logger()
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// WithComponent returns a child logger tagged with the component name, for
// callers that want structured fields instead of printf messages.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	l := logger()
	l.Debug().Msgf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	l := logger()
	l.Info().Msgf(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	l := logger()
	l.Warn().Msgf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	l := logger()
	l.Error().Msgf(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	l := logger()
	l.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	os.Exit(1)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
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
		return fmt.Sprintf("unknown(%d)", l)
	}
}
