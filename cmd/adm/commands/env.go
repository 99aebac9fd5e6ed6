// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"sync"

	"sportstrivia/internal/config"
	"sportstrivia/internal/di"
	"sportstrivia/internal/observability"
)

// Env carries the shared resources of one adm invocation. The service container is
// built on first use so commands that need no store work without one.
type Env struct {
	Config *config.Config
	Logger *observability.Logger
	Output *Printer

	mu        sync.Mutex
	container *di.ServiceContainer
}

// NewEnv creates an environment over a loaded configuration
func NewEnv(cfg *config.Config, logger *observability.Logger, output *Printer) *Env {
	return &Env{Config: cfg, Logger: logger, Output: output}
}

// Container returns the initialized service container
func (e *Env) Container(ctx context.Context) (*di.ServiceContainer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.container != nil {
		return e.container, nil
	}
	container := di.NewServiceContainer(e.Config, e.Logger)
	if err := container.Initialize(ctx); err != nil {
		return nil, err
	}
	e.container = container
	return container, nil
}

// Close releases the container if one was built
func (e *Env) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.container == nil {
		return nil
	}
	err := e.container.Shutdown(ctx)
	e.container = nil
	return err
}
