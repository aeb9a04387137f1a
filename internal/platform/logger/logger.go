package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so the audit service's own
// logs are machine-parseable alongside the events it records.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
