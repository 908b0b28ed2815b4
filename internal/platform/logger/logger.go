// Package logger builds the process-wide slog loggers.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns the standard JSON logger on stdout at info level.
func New() *slog.Logger {
	return NewAt(os.Stdout, slog.LevelInfo)
}

// NewAt returns a JSON logger writing to w at the given level. The watch
// tool renders its table on stdout, so it logs to stderr through this
// constructor to keep the two streams apart.
func NewAt(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
