package main

import (
	"log/slog"
	"os"
)

// newLogger builds the process-wide slog.Logger: a text handler to stderr
// with the level named by MERIDIAN_LOG_LEVEL (§6 ambient stack).
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
