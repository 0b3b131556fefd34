package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production runs log JSON; anything
// else gets the text handler. Every record carries the service name so the
// api and worker processes are distinguishable in shared log streams.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "garuda-dms"))
}
