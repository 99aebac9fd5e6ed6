// Package worker contains the background worker that keeps the question bank
// topped up. On every tick it reads the bank stats and, for each sport and
// point value whose eligible supply dropped below the configured minimum,
// generates replacements through the preloader.
package worker

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/services"

	"go.opentelemetry.io/otel/attribute"
)

// maxPairBackoff caps the retry delay of a failing (sport, points) pair
const maxPairBackoff = time.Hour

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool      `json:"is_running"`
	IsPaused        bool      `json:"is_paused"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
	NextRun         time.Time `json:"next_run"`
	TotalGenerated  int       `json:"total_generated"`
	TotalRuns       int       `json:"total_runs"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"` // Success, Failure
	Details   string        `json:"details"`
	Generated int           `json:"generated"`
}

// ActivityLog represents a single activity log entry
type ActivityLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // INFO, WARN, ERROR
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	Points    int       `json:"points,omitempty"`
}

// PairFailureInfo tracks failures of one (sport, points) pair for exponential backoff
type PairFailureInfo struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time"`
	NextRetryTime       time.Time `json:"next_retry_time"`
}

// Config holds worker-specific configuration
type Config struct {
	StartWorkerPaused bool
}

// Worker tops up the question bank in the background
type Worker struct {
	bank          services.QuestionBankInterface
	preloader     services.PreloaderInterface
	instance      string
	status        Status
	history       []RunRecord
	activityLogs  []ActivityLog // Circular buffer for recent activity logs
	mu            sync.RWMutex
	runMu         sync.Mutex // serializes runs
	manualTrigger chan bool
	cfg           *config.Config
	workerCfg     Config
	logger        *observability.Logger

	pairFailures map[string]*PairFailureInfo
	failureMu    sync.RWMutex

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
	done    chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(bank services.QuestionBankInterface, preloader services.PreloaderInterface, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	if instance == "" {
		instance = "default"
	}
	workerCfg := Config{StartWorkerPaused: getEnvBool("WORKER_START_PAUSED", false)}

	return &Worker{
		bank:          bank,
		preloader:     preloader,
		instance:      instance,
		status:        Status{CurrentActivity: "Initialized", IsPaused: workerCfg.StartWorkerPaused},
		history:       make([]RunRecord, 0, cfg.Worker.MaxHistory),
		activityLogs:  make([]ActivityLog, 0, cfg.Worker.MaxActivityLogs),
		manualTrigger: make(chan bool, 1),
		cfg:           cfg,
		workerCfg:     workerCfg,
		logger:        logger,
		pairFailures:  make(map[string]*PairFailureInfo),
		timeNow:       time.Now,
		done:          make(chan struct{}),
	}
}

// getEnvBool is a helper function to get boolean environment variables
func getEnvBool(key string, defaultValue bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// Start runs the worker loop until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.Worker.Interval)
	defer ticker.Stop()

	w.mu.Lock()
	w.status.IsRunning = true
	w.status.NextRun = w.timeNow().Add(w.cfg.Worker.Interval)
	paused := w.status.IsPaused
	w.mu.Unlock()

	initialStatus := "running"
	if paused {
		initialStatus = "paused"
	}
	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance":     w.instance,
		"status":       initialStatus,
		"interval":     w.cfg.Worker.Interval.String(),
		"min_eligible": w.cfg.Worker.MinEligible,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s started (%s)", w.instance, initialStatus), "", 0)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
				"instance": w.instance,
			})
			w.logActivity("INFO", fmt.Sprintf("Worker %s shutting down", w.instance), "", 0)
			w.mu.Lock()
			w.status.IsRunning = false
			w.mu.Unlock()
			return

		case <-ticker.C:
			w.run(ctx)

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.logActivity("INFO", fmt.Sprintf("Worker %s triggered manually", w.instance), "", 0)
			w.run(ctx)
		}
	}
}

// RunOnce executes a single top-up cycle regardless of the schedule
func (w *Worker) RunOnce(ctx context.Context) {
	w.run(ctx)
}

// run executes a single worker cycle
func (w *Worker) run(parent context.Context) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	ctx, span := observability.TraceWorkerFunction(parent, "run",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, nil)

	w.mu.Lock()
	w.status.NextRun = w.timeNow().Add(w.cfg.Worker.Interval)
	paused := w.status.IsPaused
	w.mu.Unlock()
	if paused {
		span.SetAttributes(attribute.String("pause_reason", "Worker instance paused"))
		w.updateActivity("Worker instance paused")
		return
	}

	start := w.timeNow()
	w.mu.Lock()
	w.status.LastRunStart = start
	w.status.CurrentActivity = "Topping up question bank"
	w.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, config.WorkerRunTimeout)
	details, generated, err := w.topUpBank(runCtx)
	cancel()

	finish := w.timeNow()
	w.mu.Lock()
	w.status.LastRunFinish = finish
	w.status.CurrentActivity = "Idle"
	w.status.TotalGenerated += generated
	if err != nil {
		w.status.LastRunError = err.Error()
	} else {
		w.status.LastRunError = ""
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error(ctx, "Worker run failed", err, map[string]interface{}{
			"instance": w.instance,
		})
		w.logActivity("ERROR", fmt.Sprintf("Run failed: %v", err), "", 0)
	}
	w.recordRunHistory(start, finish, details, generated, err)
}

type pairNeed struct {
	category models.Category
	points   int
	eligible int
}

func pairKey(category models.Category, points int) string {
	return fmt.Sprintf("%s:%d", category, points)
}

// topUpBank generates questions for every catalog pair below worker.min_eligible,
// spending at most worker.max_per_run generation attempts per run.
func (w *Worker) topUpBank(ctx context.Context) (result0 string, result1 int, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "top_up_bank",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, &err)

	stats, err := w.bank.Stats(ctx)
	if err != nil {
		return "", 0, err
	}
	eligible := make(map[string]int, len(stats))
	for _, s := range stats {
		eligible[pairKey(s.Category, s.Difficulty)] = s.Eligible
	}

	var needs []pairNeed
	for _, name := range w.cfg.SportNames() {
		for _, points := range w.cfg.PointValues(name) {
			category := models.Category(name)
			count := eligible[pairKey(category, points)]
			if count < w.cfg.Worker.MinEligible {
				needs = append(needs, pairNeed{category: category, points: points, eligible: count})
			}
		}
	}
	span.SetAttributes(attribute.Int("worker.pairs_below_minimum", len(needs)))
	if len(needs) == 0 {
		return "No action: every sport and point value has enough eligible questions", 0, nil
	}

	budget := w.cfg.Worker.MaxPerRun
	generated := 0
	var actions []string
	for _, need := range needs {
		if budget <= 0 {
			actions = append(actions, "generation budget exhausted")
			break
		}
		if ctx.Err() != nil {
			return summarizeRunActions(actions), generated, ctx.Err()
		}
		key := pairKey(need.category, need.points)
		if !w.shouldRetryPair(key) {
			actions = append(actions, fmt.Sprintf("%s backing off", key))
			continue
		}

		count := min(w.cfg.Worker.MinEligible-need.eligible, budget)
		w.updateActivity(fmt.Sprintf("Generating %d question(s) for %s", count, key))
		result := w.preloader.PreloadDifficulty(ctx, need.category, need.points, count)
		budget -= result.Requested
		generated += result.Succeeded

		switch {
		case result.Requested > 0 && result.Succeeded == 0:
			w.recordPairFailure(ctx, key)
			w.logActivity("WARN", fmt.Sprintf("No questions generated for %s (%d failed)", key, result.Failed), string(need.category), need.points)
		case result.Succeeded > 0:
			w.recordPairSuccess(ctx, key)
			w.logActivity("INFO", fmt.Sprintf("Generated %d/%d question(s) for %s", result.Succeeded, result.Requested, key), string(need.category), need.points)
		}
		actions = append(actions, fmt.Sprintf("%s: %d/%d generated", key, result.Succeeded, result.Requested))
	}

	span.SetAttributes(attribute.Int("worker.generated", generated))
	return summarizeRunActions(actions), generated, nil
}

func summarizeRunActions(actions []string) string {
	if len(actions) == 0 {
		return "No action"
	}
	return strings.Join(actions, "; ")
}

// recordRunHistory records the run in history and trims the slice
func (w *Worker) recordRunHistory(start, finish time.Time, details string, generated int, err error) {
	record := RunRecord{
		StartTime: start,
		EndTime:   finish,
		Duration:  finish.Sub(start),
		Details:   details,
		Generated: generated,
	}
	if err != nil {
		record.Status = "Failure"
	} else {
		record.Status = "Success"
	}
	w.mu.Lock()
	w.status.TotalRuns++
	w.history = append(w.history, record)
	if len(w.history) > w.cfg.Worker.MaxHistory {
		w.history = w.history[len(w.history)-w.cfg.Worker.MaxHistory:]
	}
	w.mu.Unlock()
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns the worker's run history
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// GetActivityLogs returns recent activity logs
func (w *Worker) GetActivityLogs() []ActivityLog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	logs := make([]ActivityLog, len(w.activityLogs))
	copy(logs, w.activityLogs)
	return logs
}

// GetPairFailures returns a copy of the backoff state per (sport, points)
func (w *Worker) GetPairFailures() map[string]PairFailureInfo {
	w.failureMu.RLock()
	defer w.failureMu.RUnlock()
	out := make(map[string]PairFailureInfo, len(w.pairFailures))
	for k, v := range w.pairFailures {
		out[k] = *v
	}
	return out
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// TriggerManualRun triggers a manual worker run
func (w *Worker) TriggerManualRun() {
	ctx := context.Background()
	select {
	case w.manualTrigger <- true:
		w.logger.Info(ctx, "Manual trigger sent to worker", map[string]interface{}{
			"instance": w.instance,
		})
	default:
		w.logger.Info(ctx, "Manual trigger already pending for worker", map[string]interface{}{
			"instance": w.instance,
		})
	}
}

// Pause pauses the worker
func (w *Worker) Pause(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = true
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker paused", map[string]interface{}{
		"instance": w.instance,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s paused", w.instance), "", 0)
}

// Resume resumes the worker
func (w *Worker) Resume(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = false
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker resumed", map[string]interface{}{
		"instance": w.instance,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s resumed", w.instance), "", 0)
}

// Shutdown waits for the loop started by Start to exit. The caller cancels Start's context first.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.logger.Info(ctx, "Worker starting shutdown", map[string]interface{}{
		"instance": w.instance,
	})

	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn(ctx, "Worker shutdown timed out waiting for the current run", map[string]interface{}{
			"instance": w.instance,
		})
		return ctx.Err()
	}

	w.failureMu.Lock()
	w.pairFailures = make(map[string]*PairFailureInfo)
	w.failureMu.Unlock()

	w.logger.Info(ctx, "Worker shutdown completed", map[string]interface{}{
		"instance": w.instance,
	})
	return nil
}

func (w *Worker) updateActivity(activity string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.CurrentActivity = activity
}

// logActivity adds an activity log entry
func (w *Worker) logActivity(level, message, category string, points int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.activityLogs = append(w.activityLogs, ActivityLog{
		Timestamp: w.timeNow(),
		Level:     level,
		Message:   message,
		Category:  category,
		Points:    points,
	})

	// Keep only the last MaxActivityLogs entries
	if len(w.activityLogs) > w.cfg.Worker.MaxActivityLogs {
		w.activityLogs = w.activityLogs[len(w.activityLogs)-w.cfg.Worker.MaxActivityLogs:]
	}
}

// shouldRetryPair checks if enough time has passed since the last failure for exponential backoff
func (w *Worker) shouldRetryPair(key string) bool {
	w.failureMu.RLock()
	defer w.failureMu.RUnlock()

	failure, exists := w.pairFailures[key]
	if !exists {
		return true
	}
	return !w.timeNow().Before(failure.NextRetryTime)
}

// recordPairFailure records a failure and calculates the next retry time with exponential backoff
func (w *Worker) recordPairFailure(ctx context.Context, key string) {
	ctx, span := observability.TraceWorkerFunction(ctx, "record_pair_failure",
		attribute.String("worker.pair", key),
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, nil)

	w.failureMu.Lock()
	defer w.failureMu.Unlock()

	failure, exists := w.pairFailures[key]
	if !exists {
		failure = &PairFailureInfo{}
		w.pairFailures[key] = failure
	}

	failure.ConsecutiveFailures++
	failure.LastFailureTime = w.timeNow()

	// 2^failures intervals, capped
	backoff := maxPairBackoff
	if scaled := math.Pow(2, float64(failure.ConsecutiveFailures-1)) * float64(w.cfg.Worker.Interval); scaled < float64(maxPairBackoff) {
		backoff = time.Duration(scaled)
	}
	failure.NextRetryTime = failure.LastFailureTime.Add(backoff)

	span.SetAttributes(
		attribute.Int("failure.count", failure.ConsecutiveFailures),
		attribute.String("backoff", backoff.String()),
	)
	w.logger.Info(ctx, "Worker recorded generation failure", map[string]interface{}{
		"instance":      w.instance,
		"pair":          key,
		"failure_count": failure.ConsecutiveFailures,
		"next_retry_in": backoff.String(),
	})
}

// recordPairSuccess clears the failure count for a pair
func (w *Worker) recordPairSuccess(ctx context.Context, key string) {
	w.failureMu.Lock()
	defer w.failureMu.Unlock()

	failure, exists := w.pairFailures[key]
	if exists && failure.ConsecutiveFailures > 0 {
		w.logger.Info(ctx, "Worker pair success after failures, resetting backoff", map[string]interface{}{
			"instance":          w.instance,
			"pair":              key,
			"previous_failures": failure.ConsecutiveFailures,
		})
		delete(w.pairFailures, key)
	}
}
