// Package logger builds the process-wide structured logger for the account
// service.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/bank-accounts-service/internal/config"
)

// NewLogger returns a JSON slog logger at the configured level. Every record
// carries the service name so interleaved log streams stay attributable.
// Source locations are only emitted at debug level.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})

	return slog.New(handler).With("service", cfg.Application.Name)
}

// parseLevel maps the configured level string to a slog level. Unknown values
// fall back to info rather than failing startup.
func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
