package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"financeai/internal/backend"
	"financeai/internal/config"
	"financeai/internal/events"
	applog "financeai/internal/log"
	"financeai/internal/store"
	"financeai/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent("worker")
	applog.SetDefault(logger)

	logger.Info("Starting financeai-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Backend configuration failed", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger.Logger).Create(backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	// The worker only reads, no publisher attached.
	financeStore := store.New(result.Store, store.WithCurrency(cfg.ForceCurrency))

	snapshotWorker, err := worker.NewSnapshotWorker(financeStore, cfg.SnapshotDir, cfg.SnapshotInterval)
	if err != nil {
		logger.Error("Failed to initialize snapshot worker", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume change events when a broker is configured, otherwise run on
	// the interval alone.
	if cfg.AMQPURL != "" {
		eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()

		go func() {
			if err := eventsClient.ConsumeWithReconnect(ctx, snapshotWorker.HandleChange); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()
		logger.Info("Consuming change events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - snapshots run on interval only", "interval", cfg.SnapshotInterval)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := snapshotWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Snapshot worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
