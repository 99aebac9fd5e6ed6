// Package main provides the entry point for the trivia question API server.
// It wires the question supply services and serves them over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sportstrivia/internal/config"
	"sportstrivia/internal/di"
	"sportstrivia/internal/handlers"
	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"github.com/gin-gonic/gin"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	selection, err := container.GetSelectionService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get selection service")
	}

	preloader, err := container.GetPreloader()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get preloader")
	}

	cfg := container.GetConfig()
	router := handlers.NewRouter(cfg, selection, preloader, container.GetLogger())

	return &Application{
		container: container,
		router:    router,
		server: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
	}, nil
}

// Run serves HTTP until the server fails or Shutdown is called
func (a *Application) Run() error {
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return contextutils.WrapError(err, "server failed")
	}
	return nil
}

// Shutdown stops accepting requests, drains background preloads, then releases the services
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, contextutils.WrapError(err, "http server shutdown failed"))
	}

	if preloader, err := a.container.GetPreloader(); err == nil {
		drainCtx, cancel := context.WithTimeout(ctx, config.PreloadDrainTimeout)
		// an unfinished drain is logged by the preloader and cancelled
		_ = preloader.Shutdown(drainCtx)
		cancel()
	}

	if err := a.container.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always executes
func run() int {
	ctx := context.Background()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	providers, err := observability.SetupObservability(&cfg.OpenTelemetry, handlers.ServerServiceName, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		return 1
	}
	logger := providers.Logger
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), config.TelemetryFlushTimeout)
		defer cancel()
		if err := providers.Shutdown(flushCtx); err != nil {
			logger.Warn(ctx, "Error shutting down telemetry providers", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.Info(ctx, "Starting trivia question service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"logLevel": cfg.Server.LogLevel,
		"storage":  cfg.Storage.Driver,
		"sports":   cfg.SportNames(),
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		return 1
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		_ = container.Shutdown(ctx)
		return 1
	}

	appErr := make(chan error, 1)
	go func() {
		appErr <- app.Run()
	}()

	exitCode := 0
	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		if err != nil {
			logger.Error(ctx, "Application failed", err, nil)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		exitCode = 1
	}

	logger.Info(ctx, "Shutdown completed", map[string]interface{}{"exit_code": exitCode})
	return exitCode
}
