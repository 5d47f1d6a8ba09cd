package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/handler"
	"github.com/makkenzo/keygate/internal/metrics"
	"github.com/makkenzo/keygate/internal/service"
	"github.com/makkenzo/keygate/internal/storage"
	"github.com/makkenzo/keygate/internal/worker"
	"github.com/makkenzo/keygate/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()

	sugarLogger.Info("Starting application...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := storage.NewSnapshotBackend(appCtx, cfg, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to open snapshot storage: %v", err)
	}
	defer closeBackend()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	rateDefaults := service.RateDefaults{
		Capacity:     cfg.RateLimit.Capacity,
		RefillPerSec: cfg.RateLimit.RefillPerSec,
	}

	limiter := service.NewRateLimiter(nil, appMetrics, appLogger)
	keyStore, err := service.NewKeyStore(appCtx, backend, rateDefaults, limiter, nil, appMetrics, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to load api keys: %v", err)
	}

	authGate, err := service.NewAuthGate(keyStore, limiter, cfg.Auth, nil, appMetrics, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to initialize auth gate: %v", err)
	}
	verifier := service.NewSignatureVerifier(cfg.Webhook, appMetrics, appLogger)
	apiKeyService := service.NewAPIKeyService(keyStore, appLogger)

	router := handler.NewRouter(handler.RouterDeps{
		Gate:           authGate,
		APIKeys:        handler.NewAPIKeyHandler(apiKeyService, appLogger),
		Webhooks:       handler.NewWebhookHandler(verifier, cfg.Webhook, appLogger),
		Health:         handler.NewHealthHandler(backend, keyStore, limiter, appLogger),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, appLogger)

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	g.Go(func() error {
		if err := worker.RunWorkers(groupCtx, cfg, keyStore, appLogger); err != nil {
			sugarLogger.Errorf("Asynq worker failed: %v", err)
			return fmt.Errorf("asynq worker error: %w", err)
		}
		return nil
	})

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()

	sugarLogger.Info("Shutdown sequence finished.")

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			sugarLogger.Info("Shutdown reason: Context canceled (likely due to OS signal).")
		} else {
			sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", waitErr)
		}
	} else {
		sugarLogger.Info("Application shutdown successfully (all components finished without errors).")
	}

	sugarLogger.Info("Application exiting now.")
}
