package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sportstrivia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBankGenerator records concurrency and can fail or block on demand
type fakeBankGenerator struct {
	mu        sync.Mutex
	calls     map[int]int
	active    atomic.Int32
	maxActive atomic.Int32
	fail      func(points int) bool
	block     chan struct{}
}

func newFakeBankGenerator() *fakeBankGenerator {
	return &fakeBankGenerator{calls: make(map[int]int)}
}

func (f *fakeBankGenerator) Generate(ctx context.Context, category models.Category, difficulty int) (*models.Question, error) {
	return f.GenerateForBank(ctx, category, difficulty)
}

func (f *fakeBankGenerator) GenerateForBank(ctx context.Context, category models.Category, difficulty int) (*models.Question, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[difficulty]++
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil && f.fail(difficulty) {
		return nil, errors.New("generation failed")
	}
	time.Sleep(time.Millisecond)
	return &models.Question{Category: category, Difficulty: difficulty}, nil
}

func (f *fakeBankGenerator) callsFor(points int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[points]
}

func TestPreloader_Preload(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Preload.PerDifficulty = 7
	cfg.Preload.ChunkSize = 3

	gen := newFakeBankGenerator()
	p := NewPreloaderWithLogger(gen, cfg, newTestLogger(), nil)

	result := p.Preload(context.Background(), models.CategoryBaseball)

	assert.Equal(t, models.CategoryBaseball, result.Category)
	assert.Equal(t, 28, result.Requested)
	assert.Equal(t, 28, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	for _, points := range []int{1, 2, 3, 4} {
		assert.Equal(t, 7, gen.callsFor(points), "points %d", points)
	}
	assert.LessOrEqual(t, gen.maxActive.Load(), int32(3), "chunks bound concurrency")
}

func TestPreloader_FailuresAreCounted(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Preload.PerDifficulty = 4
	cfg.Preload.ChunkSize = 2

	gen := newFakeBankGenerator()
	gen.fail = func(points int) bool { return points == 6 }
	p := NewPreloaderWithLogger(gen, cfg, newTestLogger(), nil)

	result := p.Preload(context.Background(), models.CategoryFootball)
	assert.Equal(t, 8, result.Requested)
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 4, result.Failed)
}

func TestPreloader_UnknownSport(t *testing.T) {
	gen := newFakeBankGenerator()
	p := NewPreloaderWithLogger(gen, newTestConfig(t), newTestLogger(), nil)

	result := p.Preload(context.Background(), "curling")
	assert.Equal(t, 0, result.Requested)
}

func TestPreloader_PacingStopsOnCancel(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Preload.ChunkSize = 1
	cfg.Preload.Pacing = time.Hour

	gen := newFakeBankGenerator()
	p := NewPreloaderWithLogger(gen, cfg, newTestLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := p.PreloadDifficulty(ctx, models.CategorySoccer, 1, 5)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 1, result.Requested, "only the first chunk runs before the pacing delay")
}

func TestPreloader_PreloadAsync(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Preload.PerDifficulty = 1

	gen := newFakeBankGenerator()
	gen.block = make(chan struct{})
	p := NewPreloaderWithLogger(gen, cfg, newTestLogger(), nil)

	require.True(t, p.PreloadAsync(models.CategoryBasketball))
	assert.True(t, p.Running(models.CategoryBasketball))
	assert.False(t, p.PreloadAsync(models.CategoryBasketball), "one preload per sport at a time")
	assert.True(t, p.PreloadAsync(models.CategorySoccer))

	close(gen.block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	assert.False(t, p.Running(models.CategoryBasketball))
	assert.Equal(t, 1, gen.callsFor(2))
	assert.Equal(t, 1, gen.callsFor(3))
}

func TestPreloader_ShutdownAbandonsStuckPreloads(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Preload.PerDifficulty = 1

	gen := newFakeBankGenerator()
	gen.block = make(chan struct{})
	p := NewPreloaderWithLogger(gen, cfg, newTestLogger(), nil)
	require.True(t, p.PreloadAsync(models.CategorySoccer))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// cancelled base context releases the blocked task
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	assert.NoError(t, p.Wait(waitCtx))
}
