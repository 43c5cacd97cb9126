package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/riverwatch/rivercore/internal/infrastructure/config"
)

// Logger wraps slog.Logger for the river-control node. Safe for
// concurrent use; derive per-component loggers with With.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the config.yaml logging section. Deployed
// nodes log JSON to stdout for collection; text to stderr is the usual
// bench setup. Every record carries the service name and build version.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "rivercore"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel maps the config string to a slog level. Anything
// unrecognised falls back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a logger carrying extra default attributes:
//
//	storeLog := log.With("component", "store", "site", siteID)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before the config file is read:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
