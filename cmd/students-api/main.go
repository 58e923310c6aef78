// main is the entry point of the students service, the HTTP backend the
// sync client talks to.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Open the SQLite database
//  4. Pick the summary backend
//  5. Build the chi router and start the HTTP server in a goroutine
//  6. Block until SIGINT / SIGTERM, then shut down gracefully
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-api --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/students-api
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/students-sync/internal/config"
	"github.com/aanand-mishra/students-sync/internal/http/router"
	"github.com/aanand-mishra/students-sync/internal/logger"
	"github.com/aanand-mishra/students-sync/internal/storage/sqlite"
	"github.com/aanand-mishra/students-sync/internal/summary"
)

const version = "1.1.0"

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	log := logger.New(cfg.Env, os.Stdout)
	slog.SetDefault(log)

	log.Info("starting students-api",
		slog.String("env", cfg.Env),
		slog.String("version", version),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	storage, err := sqlite.New(cfg.StoragePath)
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		_ = storage.Close()
	}()

	log.Info("storage initialised", slog.String("path", cfg.StoragePath))

	// ── 4. Summary Backend ────────────────────────────────────────────────
	gen, err := newGenerator(cfg.Summary)
	if err != nil {
		log.Error("failed to initialise summary backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("summary backend ready", slog.String("backend", cfg.Summary.Backend))

	// ── 5. HTTP Server ────────────────────────────────────────────────────
	// WriteTimeout has to outlive the slowest summary request.
	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      router.New(log, storage, gen),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Summary.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped gracefully")
}

func newGenerator(cfg config.Summary) (summary.Generator, error) {
	if cfg.Backend == config.BackendOllama {
		return summary.NewOllama(cfg.OllamaURL, cfg.Model, cfg.Timeout)
	}
	return summary.Template{Latency: cfg.Latency}, nil
}
