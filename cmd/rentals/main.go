package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rentals/internal/infra/config"
	ginserver "rentals/internal/infra/http/gin"
	"rentals/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		cfg = config.Default()
		logger = obs.NewLogger(cfg.Env, cfg.LogLevel)
		logger.Warn("using in-memory fallback configuration", "err", err)
	}

	infra, err := openInfrastructure(ctx, cfg, logger)
	if err != nil {
		logger.Error("infrastructure init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := infra.Close(closeCtx); err != nil {
			logger.Warn("infrastructure close failed", "err", err)
		}
	}()

	app, err := buildApplication(cfg, infra, logger)
	if err != nil {
		logger.Error("application init failed", "err", err)
		os.Exit(1)
	}

	if cfg.AdminPassword != "" {
		if _, err := app.auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword); err != nil {
			logger.Warn("admin seed failed", "err", err)
		}
	}

	fixturesPath := cfg.ListingsFixtures
	if fixturesPath == "" {
		fixturesPath = defaultListingFixturesPath()
	}
	if _, err := loadListingFixtures(ctx, infra.factory, fixturesPath, cfg.Currency, logger); err != nil {
		logger.Warn("listing fixtures load failed", "err", err, "path", fixturesPath)
	}

	go func() {
		if err := app.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "err", err)
		}
	}()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: infra.checks}, app.handlers)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "err", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend, "broker", cfg.Broker)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}
