// Package logger configures the global slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/nathoo/fable/config"
)

// Setup builds a logger from the configuration and installs it as the
// slog default. Output goes to w; pass nil for stderr.
func Setup(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level()}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
