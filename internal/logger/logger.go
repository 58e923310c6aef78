// Package logger builds the slog.Logger shared by the service and the CLI.
package logger

import (
	"io"
	"log/slog"
)

// Environments recognised by New.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// New returns a logger configured for env:
//
//	dev (and anything unrecognised) → text, DEBUG
//	staging                         → JSON, DEBUG
//	prod                            → JSON, INFO
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case EnvProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case EnvStaging:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
