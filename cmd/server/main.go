package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailqueue/internal/api"
	"mailqueue/internal/config"
	"mailqueue/internal/metrics"
	"mailqueue/internal/queue"
	"mailqueue/internal/store"
	"mailqueue/internal/transport"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Job Store
	// ------------------------------------------------
	jobStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer jobStore.Close()

	if err := jobStore.Migrate(ctx); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Transport
	// ------------------------------------------------
	smtp := &transport.SMTP{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		TemplateDir: cfg.TemplateDir,
	}

	// ------------------------------------------------
	// Queue Manager + Workers
	// ------------------------------------------------
	manager := queue.NewManager(jobStore, smtp, logger, queue.Options{
		Workers:       cfg.WorkerCount,
		QueueCapacity: cfg.QueueCapacity,
		RateLimit:     cfg.RateLimit,
		MaxAttempts:   cfg.MaxAttempts,
	})

	if err := manager.StartWorkers(ctx, cfg.WorkerCount); err != nil {
		logger.Fatal("failed to start workers", zap.Error(err))
	}

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Manager: manager,
		Log:     logger,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiHandler.Router(),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	// Workers finish their in-flight jobs before exiting.
	manager.StopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
