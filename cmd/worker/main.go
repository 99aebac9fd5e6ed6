// Package main provides the entry point for the trivia worker service, which keeps
// the question bank topped up and exposes an admin API for it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sportstrivia/internal/config"
	"sportstrivia/internal/di"
	"sportstrivia/internal/handlers"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/services"
	"sportstrivia/internal/worker"
)

// fatalIfErr logs the error with context and panics with a consistent message
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	panic(msg + ": " + err.Error())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.NewConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	providers, err := observability.SetupObservability(&cfg.OpenTelemetry, handlers.WorkerServiceName, cfg.Server.LogLevel)
	if err != nil {
		panic("Failed to initialize observability: " + err.Error())
	}
	logger := providers.Logger
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), config.TelemetryFlushTimeout)
		defer flushCancel()
		if err := providers.Shutdown(flushCtx); err != nil {
			logger.Warn(ctx, "Error shutting down telemetry providers", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.Info(ctx, "Starting trivia worker service", map[string]interface{}{
		"port":       cfg.Server.WorkerPort,
		"logLevel":   cfg.Server.LogLevel,
		"debug":      cfg.Server.Debug,
		"interval":   cfg.Worker.Interval.String(),
		"min_needed": cfg.Worker.MinEligible,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize services", err, map[string]interface{}{"storage": cfg.Storage.Driver})
	}

	bank, err := container.GetQuestionBank()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to get question bank", err, nil)
	}
	preloader, err := container.GetPreloader()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to get preloader", err, nil)
	}

	var generatorStats handlers.GeneratorStatsProvider
	if textGen, err := container.GetTextGenerator(); err == nil {
		if limited, ok := textGen.(*services.LimitedTextGenerator); ok {
			generatorStats = limited
		}
	}

	workerInstance := worker.NewWorker(bank, preloader, "default", cfg, logger)
	go workerInstance.Start(ctx)

	router := handlers.NewWorkerRouter(cfg, workerInstance, bank, generatorStats, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.WorkerPort,
		Handler: router,
	}

	go func() {
		logger.Info(ctx, "Worker server starting", map[string]interface{}{"port": cfg.Server.WorkerPort})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalIfErr(ctx, logger, "Failed to start worker server", err, map[string]interface{}{"port": cfg.Server.WorkerPort})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Worker server shutting down", map[string]interface{}{"service": "worker"})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.WorkerShutdownTimeout)
	defer shutdownCancel()

	// Stop the run loop before the services it uses go away
	cancel()
	if err := workerInstance.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Warning: failed to shutdown worker", map[string]interface{}{"error": err.Error(), "service": "worker"})
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Worker server forced to shutdown", map[string]interface{}{"error": err.Error(), "service": "worker"})
	}

	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Warning: failed to release services", map[string]interface{}{"error": err.Error(), "service": "worker"})
	}

	logger.Info(ctx, "Worker server exited", map[string]interface{}{"service": "worker"})
}
