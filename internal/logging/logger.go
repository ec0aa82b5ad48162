// internal/logging/logger.go
package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured logger writing to w (stdout when nil).
// Format is "json" or "text"; level is debug/info/warn/error.
func NewLogger(format string, level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// WithTrigger returns a logger with the trigger name attached.
func WithTrigger(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("trigger", name)
}
