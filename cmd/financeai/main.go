package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeai/internal/backend"
	"financeai/internal/config"
	"financeai/internal/events"
	apphttp "financeai/internal/http"
	"financeai/internal/insights"
	applog "financeai/internal/log"
	"financeai/internal/store"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting financeai server")

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

	storeOpts := []store.Option{store.WithCurrency(cfg.ForceCurrency)}

	// AMQP change events are optional, the store works without them.
	if cfg.AMQPURL != "" {
		eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer eventsClient.Close()
			storeOpts = append(storeOpts, store.WithPublisher(eventsClient))
			logger.Info("Initialized AMQP events",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	financeStore := store.New(result.Store, storeOpts...)

	var serverOpts []apphttp.ServerOption
	advisor, err := insights.NewAdvisor(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.InsightsModel)
	switch {
	case err == nil:
		serverOpts = append(serverOpts, apphttp.WithAdvisor(advisor))
		logger.Info("Initialized insights advisor", "model", cfg.InsightsModel)
	case errors.Is(err, insights.ErrNotConfigured):
		logger.Info("Insights disabled - no OPENAI_API_KEY provided")
	default:
		logger.Error("Failed to initialize insights advisor", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, financeStore, serverOpts...)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting financeai server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
