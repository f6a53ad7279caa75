// Package logging configures the process-wide zerolog logger and hands out
// per-component loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel names a minimum severity.
type LogLevel string

// Supported levels, lowest first.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Levels lists the supported levels, lowest first.
var Levels = []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum severity written; empty means info.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format.
	Pretty bool

	// Output receives log lines (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ParseLevel maps a level name (case-insensitive, "warning" accepted for
// warn) to its zerolog level. Names outside Levels are an error.
func ParseLevel(name string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "warning" {
		normalized = string(LevelWarn)
	}

	for _, level := range Levels {
		if string(level) == normalized {
			return zerolog.ParseLevel(normalized)
		}
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q (want one of %s)", name, levelNames())
}

func levelNames() string {
	names := make([]string, len(Levels))
	for i, level := range Levels {
		names[i] = string(level)
	}
	return strings.Join(names, ", ")
}

// Setup installs the global zerolog logger described by cfg and returns it.
// An unknown level leaves the global logger untouched.
func Setup(cfg Config) (zerolog.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = LevelInfo
	}
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		return zerolog.Nop(), err
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger, nil
}

// NewLogger derives a logger tagged with component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels in use:
//
// Debug: cache hits and misses, limiter queueing, page fetches, identity
// lookups.
//
// Info: stream summaries, Redis export target, metrics server lifecycle.
//
// Warn: non-2xx responses, network failures, retries.
//
// Error: failed commands.
//
// Common fields: component, host, url, status, error_class, stream,
// identifier.
