package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ServiceName tags every line so storefront logs can be told apart in a
// shared sink.
const ServiceName = "storefront"

// New returns the process logger: JSON lines on stdout at LOG_LEVEL.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler).With(slog.String("service", ServiceName))
}

// ParseLevel maps LOG_LEVEL values to slog levels. Anything unrecognised is
// info; "warning" is accepted next to "warn".
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard is for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
