// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"sportstrivia/internal/config"
	"sportstrivia/internal/database"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/services"
	contextutils "sportstrivia/internal/utils"
)

// Storage drivers accepted in storage.driver
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetQuestionBank() (services.QuestionBankInterface, error)
	GetDedupGate() (services.DedupGateInterface, error)
	GetTextGenerator() (services.TextGenerator, error)
	GetQuestionGenerator() (services.QuestionGeneratorInterface, error)
	GetSelectionService() (services.SelectionServiceInterface, error)
	GetPreloader() (services.PreloaderInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize opens the configured store and wires the question supply services
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	bank, err := sc.initializeBank(ctx)
	if err != nil {
		_ = sc.cleanup(ctx)
		return err
	}

	if err := sc.initializeServices(ctx, bank); err != nil {
		_ = sc.cleanup(ctx)
		return err
	}
	return nil
}

// initializeBank builds the store selected by storage.driver, with the Redis cache in front when enabled
func (sc *ServiceContainer) initializeBank(ctx context.Context) (services.QuestionBankInterface, error) {
	var bank services.QuestionBankInterface

	switch sc.cfg.Storage.Driver {
	case StorageDriverPostgres:
		sc.dbManager = database.NewManager(sc.logger)
		db, err := sc.dbManager.InitDBWithConfig(ctx, sc.cfg.Database)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to initialize database")
		}
		sc.db = db
		sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
			return db.Close()
		})
		bank = services.NewQuestionBankWithLogger(db, sc.cfg, sc.logger)
	case StorageDriverMemory:
		sc.logger.Warn(ctx, "Using in-memory question bank; questions are lost on restart", nil)
		bank = services.NewMemoryQuestionBank(sc.cfg)
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown storage driver %q", sc.cfg.Storage.Driver)
	}

	if sc.cfg.Redis.Enabled {
		client, err := database.NewRedisClient(ctx, sc.cfg.Redis)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to connect to redis")
		}
		sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
			return client.Close()
		})
		bank = services.NewCachedQuestionBank(bank, client, sc.cfg.Redis, sc.logger)
		sc.logger.Info(ctx, "Recent texts cache enabled", map[string]interface{}{
			"mode": sc.cfg.Redis.Mode,
			"ttl":  sc.cfg.Redis.TTL.String(),
		})
	}
	return bank, nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context, bank services.QuestionBankInterface) error {
	metrics := observability.NewQuestionMetrics()
	sc.services["metrics"] = metrics
	sc.services["bank"] = bank

	dedup := services.NewDedupGateWithLogger(bank, sc.cfg, sc.logger)
	sc.services["dedup"] = dedup

	// A missing or broken provider leaves the service up on bank and fallback questions
	textGen, err := services.NewTextGenerator(sc.cfg, sc.logger)
	if err != nil {
		sc.logger.Error(ctx, "Text generation disabled", err, map[string]interface{}{
			"provider": sc.cfg.Generation.Provider,
		})
		sc.services["text_generator"] = services.NewUnavailableTextGenerator(err)
	} else {
		sc.services["text_generator"] = textGen
	}

	generator, err := services.NewQuestionGeneratorWithLogger(bank, dedup, sc.services["text_generator"].(services.TextGenerator), sc.cfg, sc.logger, metrics)
	if err != nil {
		return contextutils.WrapError(err, "failed to create question generator")
	}
	sc.services["generator"] = generator

	fallback := services.NewFallbackProvider(sc.cfg)
	sc.services["fallback"] = fallback

	sc.services["selection"] = services.NewSelectionServiceWithLogger(bank, generator, fallback, sc.cfg, sc.logger, metrics)
	sc.services["preloader"] = services.NewPreloaderWithLogger(generator, sc.cfg, sc.logger, metrics)
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetQuestionBank returns the question bank, cached when Redis is enabled
func (sc *ServiceContainer) GetQuestionBank() (services.QuestionBankInterface, error) {
	return GetServiceAs[services.QuestionBankInterface](sc, "bank")
}

// GetDedupGate returns the dedup gate
func (sc *ServiceContainer) GetDedupGate() (services.DedupGateInterface, error) {
	return GetServiceAs[services.DedupGateInterface](sc, "dedup")
}

// GetTextGenerator returns the text generator
func (sc *ServiceContainer) GetTextGenerator() (services.TextGenerator, error) {
	return GetServiceAs[services.TextGenerator](sc, "text_generator")
}

// GetQuestionGenerator returns the question generator
func (sc *ServiceContainer) GetQuestionGenerator() (services.QuestionGeneratorInterface, error) {
	return GetServiceAs[services.QuestionGeneratorInterface](sc, "generator")
}

// GetSelectionService returns the selection service
func (sc *ServiceContainer) GetSelectionService() (services.SelectionServiceInterface, error) {
	return GetServiceAs[services.SelectionServiceInterface](sc, "selection")
}

// GetPreloader returns the preloader
func (sc *ServiceContainer) GetPreloader() (services.PreloaderInterface, error) {
	return GetServiceAs[services.PreloaderInterface](sc, "preloader")
}

// GetDatabase returns the database instance, nil for the memory store
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	// Lifecycle services first so background work stops before its store closes
	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			} else {
				sc.logger.Info(ctx, "Service shutdown successfully", map[string]interface{}{"service": name})
			}
		}
	}

	// Shutdown resources in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}
