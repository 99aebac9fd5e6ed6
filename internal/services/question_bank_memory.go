package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	contextutils "sportstrivia/internal/utils"

	"github.com/google/uuid"
)

// MemoryQuestionBank keeps the bank in process memory. It backs local runs with
// storage.driver=memory and the service tests.
type MemoryQuestionBank struct {
	mu           sync.RWMutex
	questions    map[string]*models.Question
	order        []string // insertion order
	fingerprints map[string]string
	cfg          *config.Config
	now          func() time.Time
}

// NewMemoryQuestionBank creates an empty in-memory bank
func NewMemoryQuestionBank(cfg *config.Config) *MemoryQuestionBank {
	return &MemoryQuestionBank{
		questions:    make(map[string]*models.Question),
		fingerprints: make(map[string]string),
		cfg:          cfg,
		now:          time.Now,
	}
}

// SetClock replaces the time source
func (b *MemoryQuestionBank) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// FindEligible filters by the eligibility predicate and sorts by usage then last use
func (b *MemoryQuestionBank) FindEligible(ctx context.Context, category models.Category, difficulty, limit int) ([]*models.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "query eligible questions")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.now()
	var eligible []*models.Question
	for _, id := range b.order {
		q := b.questions[id]
		if q.Category != category || q.Difficulty != difficulty {
			continue
		}
		if !q.IsEligible(now, b.cfg.Questions.UsageCap, b.cfg.Questions.FreshnessWindow) {
			continue
		}
		eligible = append(eligible, q.Clone())
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, c := eligible[i], eligible[j]
		if a.UsageCount != c.UsageCount {
			return a.UsageCount < c.UsageCount
		}
		switch {
		case a.LastUsed == nil:
			return c.LastUsed != nil
		case c.LastUsed == nil:
			return false
		default:
			return a.LastUsed.Before(*c.LastUsed)
		}
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

// RecordSelection increments usage under the bank lock
func (b *MemoryQuestionBank) RecordSelection(ctx context.Context, id string) (*models.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "record question selection")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.questions[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "question %s not found", id)
	}
	now := b.now()
	q.UsageCount++
	q.LastUsed = &now
	return q.Clone(), nil
}

// Insert stores a copy of q
func (b *MemoryQuestionBank) Insert(ctx context.Context, q *models.Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storeError(err, "insert question")
	}
	if err := contextutils.ValidateStruct(q); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fpKey := string(q.Category) + ":" + Fingerprint(q.Text)
	if _, exists := b.fingerprints[fpKey]; exists {
		return "", contextutils.WrapErrorf(contextutils.ErrRecordExists, "question text already in bank for %s", q.Category)
	}

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = b.now()
	}

	stored := q.Clone()
	stored.Source = ""
	b.questions[stored.ID] = stored
	b.order = append(b.order, stored.ID)
	b.fingerprints[fpKey] = stored.ID
	return stored.ID, nil
}

// RecentTexts walks the bank newest first
func (b *MemoryQuestionBank) RecentTexts(ctx context.Context, category models.Category, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "query recent texts")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	all := make([]*models.Question, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		q := b.questions[b.order[i]]
		if category == "" || q.Category == category {
			all = append(all, q)
		}
	}
	// newest first; equal timestamps keep the latest insert first
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	texts := []string{}
	for _, q := range all {
		if len(texts) == limit {
			break
		}
		texts = append(texts, q.Text)
	}
	return texts, nil
}

// Stats counts questions per (category, difficulty)
func (b *MemoryQuestionBank) Stats(ctx context.Context) ([]models.BankStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err, "query bank stats")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	type key struct {
		category   models.Category
		difficulty int
	}
	now := b.now()
	byKey := make(map[key]*models.BankStat)
	for _, q := range b.questions {
		k := key{q.Category, q.Difficulty}
		s, ok := byKey[k]
		if !ok {
			s = &models.BankStat{Category: q.Category, Difficulty: q.Difficulty}
			byKey[k] = s
		}
		s.Total++
		if q.IsEligible(now, b.cfg.Questions.UsageCap, b.cfg.Questions.FreshnessWindow) {
			s.Eligible++
		}
		if q.UsageCount == 0 {
			s.Unused++
		}
	}

	stats := make([]models.BankStat, 0, len(byKey))
	for _, s := range byKey {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Category != stats[j].Category {
			return stats[i].Category < stats[j].Category
		}
		return stats[i].Difficulty < stats[j].Difficulty
	})
	return stats, nil
}

// Len reports how many questions the bank holds
func (b *MemoryQuestionBank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

// Get returns a copy of the stored question
func (b *MemoryQuestionBank) Get(id string) (*models.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.questions[id]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}
