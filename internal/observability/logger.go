package observability

import (
	"io"
	"log/slog"
)

// NewLogger returns a logger at level: text in development, JSON elsewhere.
func NewLogger(w io.Writer, level slog.Level, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if environment == "development" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
