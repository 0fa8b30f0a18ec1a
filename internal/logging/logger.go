package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process-wide JSON logger. Every line carries the service
// name so aggregated logs stay attributable. Unknown level strings fall back
// to info rather than failing startup.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler).With(slog.String("service", "sable"))
}

// Discard returns a logger whose output goes nowhere. Tests pass it to
// service constructors to keep them quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
