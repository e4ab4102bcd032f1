package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"hrdesk/internal/platform/config"
)

// New builds the process logger and installs it as the slog default.
func New(cfg config.Config) *slog.Logger {
	logger := slog.New(newHandler(os.Stdout, cfg.LogFormat, ParseLevel(cfg.LogLevel)))
	slog.SetDefault(logger)
	return logger
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
