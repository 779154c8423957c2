package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/api"
	"github.com/akashvim3/Birthday-Wishes-System/internal/app"
	"github.com/akashvim3/Birthday-Wishes-System/internal/config"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	deps := api.Deps{
		Birthdays: a.Birthdays,
		Wishes:    a.Wishes,
		Groups:    a.Groups,
		Jobs:      a.Runner,
		Intents:   a.Intents,
		Assistant: a.Assistant,
		Location:  a.Location,
	}
	// Leave the interface nil rather than holding a nil *Scheduler.
	if a.Dispatcher != nil {
		deps.Dispatcher = a.Dispatcher
	}
	if a.Notifier == nil {
		logger.Warn("no notifier configured, send and dispatch endpoints are disabled")
	}

	// A nil *redis.Client must not reach the UniversalClient interface.
	health := api.NewHealthChecker(a.DB, nil)
	if a.Redis != nil {
		health = api.NewHealthChecker(a.DB, a.Redis)
	}
	server := api.NewServer(cfg.Server, api.NewHandlers(deps), health)

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
