package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"sportstrivia/internal/config"
	"sportstrivia/internal/middleware"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/services"
	"sportstrivia/internal/version"
	"sportstrivia/internal/worker"
)

// Service names reported by /v1/version and used for HTTP spans
const (
	ServerServiceName = "trivia-server"
	WorkerServiceName = "trivia-worker"
)

// NewRouter builds the question API router
func NewRouter(
	cfg *config.Config,
	selection services.SelectionServiceInterface,
	preloader services.PreloaderInterface,
	logger *observability.Logger,
) *gin.Engine {
	router := newBaseRouter(cfg, ServerServiceName, logger)

	questionHandler := NewQuestionHandler(selection, preloader, cfg, logger)
	sportsHandler := NewSportsHandler(cfg)

	v1 := router.Group("/v1")
	{
		v1.GET("/questions/next", questionHandler.GetNextQuestion)
		v1.POST("/games/preload", questionHandler.PreloadGame)
		v1.GET("/sports", sportsHandler.ListSports)
	}

	return router
}

// NewWorkerRouter builds the worker admin router
func NewWorkerRouter(
	cfg *config.Config,
	w *worker.Worker,
	bank services.QuestionBankInterface,
	generator GeneratorStatsProvider,
	logger *observability.Logger,
) *gin.Engine {
	router := newBaseRouter(cfg, WorkerServiceName, logger)

	adminHandler := NewWorkerAdminHandlerWithLogger(w, bank, generator, cfg, logger)

	workerGroup := router.Group("/v1/worker")
	{
		workerGroup.GET("/details", adminHandler.GetWorkerDetails)
		workerGroup.GET("/status", adminHandler.GetWorkerStatus)
		workerGroup.GET("/logs", adminHandler.GetActivityLogs)
		workerGroup.POST("/pause", adminHandler.PauseWorker)
		workerGroup.POST("/resume", adminHandler.ResumeWorker)
		workerGroup.POST("/trigger", adminHandler.TriggerWorkerRun)
		workerGroup.GET("/bank", adminHandler.GetBankStats)
		workerGroup.GET("/ai-concurrency", adminHandler.GetAIConcurrencyStats)
	}

	return router
}

// newBaseRouter sets up the middleware shared by both servers plus health and version
func newBaseRouter(cfg *config.Config, serviceName string, logger *observability.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger, nil))
	router.Use(requestLogger(logger))

	// Health check endpoint (defined before tracing so probes stay out of traces)
	router.GET("/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	router.Use(observability.GinMiddlewareWithErrorHandling(serviceName)...)
	router.Use(middleware.GameID())

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Requested-With", middleware.GameIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	router.GET("/v1/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Info(serviceName))
	})

	return router
}

// requestLogger logs every request through the observability logger
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
