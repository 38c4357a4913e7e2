// Package log provides the structured logger shared by the chassis packages.
// It wraps slog; components attach a "component" attribute with For.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
// Only the first of Init and L to run chooses the level.
func Init(level string) {
	once.Do(func() { setup(level) })
}

func setup(level string) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	// JSON when running on the robot under a supervisor, text otherwise.
	if os.Getenv("GO_ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}

	slog.SetDefault(logger)
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the global logger instance, initialising it at info level if
// Init has not been called.
func L() *slog.Logger {
	once.Do(func() { setup("info") })
	return logger
}

func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// For returns a logger tagged with the named component.
func For(component string) *slog.Logger {
	return L().With("component", component)
}
