package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Preload task outcomes recorded on the preload counter
const (
	preloadResultSuccess = "success"
	preloadResultFailure = "failure"
)

// PreloaderInterface warms the bank ahead of play
type PreloaderInterface interface {
	Preload(ctx context.Context, category models.Category) PreloadResult
	PreloadDifficulty(ctx context.Context, category models.Category, points, count int) PreloadResult
	PreloadAsync(category models.Category) bool
	Running(category models.Category) bool
	Shutdown(ctx context.Context) error
}

// PreloadResult counts generation tasks of one preload run
type PreloadResult struct {
	Category  models.Category `json:"category"`
	Requested int             `json:"requested"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

func (r *PreloadResult) add(o PreloadResult) {
	r.Requested += o.Requested
	r.Succeeded += o.Succeeded
	r.Failed += o.Failed
}

// Preloader generates unused questions for every point value of a sport in small
// concurrent chunks. Failures are logged and counted, never returned.
type Preloader struct {
	generator QuestionGeneratorInterface
	cfg       *config.Config
	logger    *observability.Logger
	metrics   *observability.QuestionMetrics

	mu       sync.Mutex
	inFlight map[models.Category]bool
	wg       sync.WaitGroup
	// background preloads derive from baseCtx so Shutdown can abandon them
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewPreloaderWithLogger creates a preloader. metrics may be nil.
func NewPreloaderWithLogger(generator QuestionGeneratorInterface, cfg *config.Config, logger *observability.Logger, metrics *observability.QuestionMetrics) *Preloader {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Preloader{
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		inFlight:  make(map[models.Category]bool),
		baseCtx:   baseCtx,
		cancel:    cancel,
	}
}

// Preload runs preload.per_difficulty tasks for each point value of category
func (p *Preloader) Preload(ctx context.Context, category models.Category) (result PreloadResult) {
	ctx, span := observability.TracePreloadFunction(ctx, "preload", observability.AttributeCategory(category))
	defer func() {
		span.SetAttributes(
			attribute.Int("preload.succeeded", result.Succeeded),
			attribute.Int("preload.failed", result.Failed),
		)
		span.End()
	}()

	result.Category = category
	points := p.cfg.PointValues(string(category))
	if len(points) == 0 {
		p.logger.Warn(ctx, "No point values for sport, nothing to preload", map[string]interface{}{"category": string(category)})
		return result
	}

	start := time.Now()
	for _, pts := range points {
		if ctx.Err() != nil {
			break
		}
		result.add(p.PreloadDifficulty(ctx, category, pts, p.cfg.Preload.PerDifficulty))
	}

	p.logger.Info(ctx, "Preload finished", map[string]interface{}{
		"category":  string(category),
		"requested": result.Requested,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"duration":  time.Since(start).String(),
	})
	return result
}

// PreloadDifficulty runs count tasks for one point value, preload.chunk_size at a time,
// pausing preload.pacing between chunks
func (p *Preloader) PreloadDifficulty(ctx context.Context, category models.Category, points, count int) (result PreloadResult) {
	ctx, span := observability.TracePreloadFunction(ctx, "preload_difficulty",
		observability.AttributeCategory(category),
		observability.AttributeDifficulty(points),
		attribute.Int("preload.count", count),
	)
	defer span.End()

	result.Category = category
	chunkSize := p.cfg.Preload.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1
	}

	var mu sync.Mutex
	for start := 0; start < count; start += chunkSize {
		if start > 0 && !sleepCtx(ctx, p.cfg.Preload.Pacing) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		n := min(chunkSize, count-start)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := p.runTask(ctx, category, points)

				mu.Lock()
				defer mu.Unlock()
				result.Requested++
				if err != nil {
					result.Failed++
					return
				}
				result.Succeeded++
			}()
		}
		wg.Wait()
	}
	return result
}

func (p *Preloader) runTask(ctx context.Context, category models.Category, points int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preload task panicked: %v", r)
			p.logger.Error(ctx, "Preload task panicked", err, map[string]interface{}{"category": string(category), "points": points})
		}
		if err != nil {
			p.metrics.PreloadTask(ctx, string(category), preloadResultFailure)
			return
		}
		p.metrics.PreloadTask(ctx, string(category), preloadResultSuccess)
	}()

	if _, err := p.generator.GenerateForBank(ctx, category, points); err != nil {
		p.logger.Warn(ctx, "Preload task failed", map[string]interface{}{
			"category": string(category),
			"points":   points,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// PreloadAsync starts a background preload for category and returns at once.
// It returns false when one is already running for the category.
func (p *Preloader) PreloadAsync(category models.Category) bool {
	p.mu.Lock()
	if p.inFlight[category] {
		p.mu.Unlock()
		return false
	}
	p.inFlight[category] = true
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.inFlight, category)
			p.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error(context.Background(), "Background preload panicked", fmt.Errorf("%v", r), map[string]interface{}{"category": string(category)})
			}
		}()

		ctx, cancel := context.WithTimeout(p.baseCtx, p.cfg.Preload.Timeout)
		defer cancel()
		p.Preload(ctx, category)
	}()
	return true
}

// Running reports whether a background preload for category is in flight
func (p *Preloader) Running(category models.Category) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[category]
}

// Wait blocks until background preloads finish or ctx is done
func (p *Preloader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown waits for background preloads until ctx is done, then cancels the rest
func (p *Preloader) Shutdown(ctx context.Context) error {
	err := p.Wait(ctx)
	p.cancel()
	if err != nil {
		p.logger.Warn(ctx, "Abandoning unfinished preloads", map[string]interface{}{"error": err.Error()})
	}
	return err
}

// sleepCtx waits for d and reports false if ctx ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
