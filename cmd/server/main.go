package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unionvote/internal/platform/config"
	"unionvote/internal/platform/httpserver"
	"unionvote/internal/platform/logger"
)

const shutdownTimeout = 15 * time.Second

// main loads configuration, wires the application and runs the HTTP server
// until SIGINT or SIGTERM. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialise application", "error", err)
		os.Exit(1)
	}

	srv := httpserver.New(cfg.Server.Addr, app.router)
	go func() {
		log.Info("starting unionvote",
			"addr", cfg.Server.Addr,
			"store_backend", cfg.Backends.Store,
			"ledger_backend", cfg.Backends.Ledger,
			"delivery_channel", cfg.Delivery.Channel,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	app.close(shutdownCtx)
	log.Info("server stopped")
}
