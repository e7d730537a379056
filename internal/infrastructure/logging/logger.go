// Package logging builds the slog loggers used by the CLI and the API server.
//
// Text output is a compact console layout:
// [LEVEL] [component] [HH:MM:SS] message key=value
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/config"
)

// ParseLevel maps a config level name to a slog level. Unknown names
// resolve to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a logger writing to stderr so command output on stdout
// stays machine readable.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return New(os.Stderr, cfg)
}

// New creates a logger writing to w in the configured format.
func New(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewConsoleHandler(w, opts))
}

// NewComponentLogger scopes a logger to one part of the system
// (e.g. "engine", "storage", "api").
func NewComponentLogger(cfg config.LoggingConfig, component string) *slog.Logger {
	return NewLogger(cfg).With(ComponentKey, component)
}
