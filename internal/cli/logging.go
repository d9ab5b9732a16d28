package cli

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance
var Logger *slog.Logger

// InitLogging initializes the logger with the appropriate level based on environment
func InitLogging() {
	level := new(slog.LevelVar)

	switch strings.ToUpper(os.Getenv("PYSCRIPT_LOG")) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	// Diagnostics go to stderr so they never interleave with workflow
	// commands on stdout.
	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(Logger)
}
