package handlers

import (
	"net/http"

	"sportstrivia/internal/config"
	"sportstrivia/internal/middleware"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/services"
	contextutils "sportstrivia/internal/utils"
	"sportstrivia/internal/worker"

	"github.com/gin-gonic/gin"
)

// GeneratorStatsProvider reports text generator concurrency counters
type GeneratorStatsProvider interface {
	Stats() services.GeneratorStats
}

// WorkerAdminHandler handles worker administration endpoints
type WorkerAdminHandler struct {
	worker    *worker.Worker
	bank      services.QuestionBankInterface
	generator GeneratorStatsProvider
	config    *config.Config
	logger    *observability.Logger
}

// NewWorkerAdminHandlerWithLogger creates a new WorkerAdminHandler. generator may be nil.
func NewWorkerAdminHandlerWithLogger(
	w *worker.Worker,
	bank services.QuestionBankInterface,
	generator GeneratorStatsProvider,
	cfg *config.Config,
	logger *observability.Logger,
) *WorkerAdminHandler {
	return &WorkerAdminHandler{
		worker:    w,
		bank:      bank,
		generator: generator,
		config:    cfg,
		logger:    logger,
	}
}

// GetWorkerDetails returns the worker status, run history and per-pair backoff state
func (h *WorkerAdminHandler) GetWorkerDetails(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_details")
	defer observability.FinishSpan(span, nil)
	if h.worker == nil {
		middleware.HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"status":   h.worker.GetStatus(),
		"history":  h.worker.GetHistory(),
		"backoff":  h.worker.GetPairFailures(),
	})
}

// GetWorkerStatus returns only the current status
func (h *WorkerAdminHandler) GetWorkerStatus(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_status")
	defer observability.FinishSpan(span, nil)
	if h.worker == nil {
		middleware.HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// GetActivityLogs returns recent activity logs from the worker
func (h *WorkerAdminHandler) GetActivityLogs(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_activity_logs")
	defer observability.FinishSpan(span, nil)
	if h.worker == nil {
		middleware.HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": h.worker.GetActivityLogs()})
}

// PauseWorker pauses the worker
func (h *WorkerAdminHandler) PauseWorker(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "pause_worker")
	defer observability.FinishSpan(span, nil)
	if h.worker == nil {
		middleware.HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}

	h.worker.Pause(ctx)
	c.JSON(http.StatusOK, gin.H{"message": "Worker paused"})
}

// ResumeWorker resumes the worker
func (h *WorkerAdminHandler) ResumeWorker(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "resume_worker")
	defer observability.FinishSpan(span, nil)
	if h.worker == nil {
		middleware.HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}

	h.worker.Resume(ctx)
	c.JSON(http.StatusOK, gin.H{"message": "Worker resumed"})
}

// TriggerWorkerRun queues a manual run
func (h *WorkerAdminHandler) TriggerWorkerRun(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "trigger_worker_run")
	defer observability.FinishSpan(span, nil)
	if h.worker == nil {
		middleware.HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}

	h.worker.TriggerManualRun()
	c.JSON(http.StatusAccepted, gin.H{"message": "Worker run triggered"})
}

// GetBankStats returns per sport and point value counts of the question bank
func (h *WorkerAdminHandler) GetBankStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_bank_stats")
	defer observability.FinishSpan(span, nil)

	stats, err := h.bank.Stats(ctx)
	if err != nil {
		h.logger.Error(ctx, "Failed to get bank stats", err, nil)
		middleware.HandleAppError(c, contextutils.WrapError(err, "failed to get bank stats"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "min_eligible": h.config.Worker.MinEligible})
}

// GetAIConcurrencyStats returns the text generator's concurrency counters
func (h *WorkerAdminHandler) GetAIConcurrencyStats(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_ai_concurrency_stats")
	defer observability.FinishSpan(span, nil)
	if h.generator == nil {
		middleware.HandleAppError(c, contextutils.ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, h.generator.Stats())
}
