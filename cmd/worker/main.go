package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/akashvim3/Birthday-Wishes-System/internal/app"
	"github.com/akashvim3/Birthday-Wishes-System/internal/config"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// The worker runs the dispatch loop and the periodic job runner until it is
// signalled. Any number of workers may run against the same database.
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

	g, gctx := errgroup.WithContext(ctx)

	if a.Dispatcher != nil {
		g.Go(func() error {
			if err := a.Dispatcher.Start(); err != nil {
				return err
			}
			<-gctx.Done()
			a.Dispatcher.Stop()
			return nil
		})
	} else {
		logger.Warn("no notifier configured, dispatcher not started")
	}

	g.Go(func() error {
		if err := a.Runner.Start(); err != nil {
			return err
		}
		<-gctx.Done()
		a.Runner.Stop()
		return nil
	})

	logger.Info("worker running", "jobs", a.Runner.Jobs(), "dispatcher", a.Dispatcher != nil)
	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
