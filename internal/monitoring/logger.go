// Package monitoring owns process-wide logging.
//
// Packages obtain a component logger with Component and log structured
// events through it. Logf remains as a printf-style hook for call sites that
// only need a line of text; tests can redirect or mute it with SetLogger.
package monitoring

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "EXPLORE_LOG_LEVEL"
	EnvLogNoColor = "EXPLORE_LOG_NOCOLOR"
)

// Options controls the process logger.
type Options struct {
	Level   zerolog.Level
	Console bool // human-readable output instead of JSON lines
	NoColor bool
	Writer  io.Writer // defaults to os.Stderr
}

// DefaultOptions returns the runtime defaults: info level, console output on stderr.
func DefaultOptions() Options {
	return Options{
		Level:   zerolog.InfoLevel,
		Console: true,
		Writer:  os.Stderr,
	}
}

var (
	mu   sync.RWMutex
	base = newLogger(DefaultOptions())
)

func defaultLogf(format string, v ...interface{}) {
	l := current()
	l.Info().Msgf(format, v...)
}

var logf = defaultLogf // guarded by mu

// Logf is the package-level diagnostic logger. It defaults to an info-level
// event on the process logger but may be replaced by SetLogger.
func Logf(format string, v ...interface{}) {
	mu.RLock()
	f := logf
	mu.RUnlock()
	f(format, v...)
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	mu.Lock()
	logf = f
	mu.Unlock()
}

// Configure rebuilds the process logger. Environment overrides
// (EXPLORE_LOG_LEVEL, EXPLORE_LOG_NOCOLOR) win over opts.
func Configure(opts Options) {
	applyEnvOverrides(&opts)
	l := newLogger(opts)
	mu.Lock()
	base = l
	mu.Unlock()
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	l := current()
	return l.With().Str("component", name).Logger()
}

// Disable mutes all logging. Intended for tests and benchmarks.
func Disable() {
	mu.Lock()
	base = zerolog.Nop()
	mu.Unlock()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func newLogger(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Console {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    opts.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(w).Level(opts.Level).With().Timestamp().Logger()
}

func applyEnvOverrides(opts *Options) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvLogNoColor))); err == nil {
		opts.NoColor = v
	}
}

// ParseLevel maps a user-supplied level name to a zerolog level.
// The second result is false for empty or unknown input.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
