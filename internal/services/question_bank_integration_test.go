//go:build integration

package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"sportstrivia/internal/database"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBankTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := database.DefaultDatabaseConfig()
	if cfg.URL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.NewManager(observability.NewNopLogger()).InitDBWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	_, err = db.Exec(`TRUNCATE questions`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQuestionBank_Integration(t *testing.T) {
	db := setupBankTestDB(t)
	ctx := context.Background()
	cfg := newTestConfig(t)
	bank := NewQuestionBankWithLogger(db, cfg, newTestLogger())

	now := time.Now().UTC().Truncate(time.Microsecond)
	bank.now = func() time.Time { return now }

	insert := func(text string, usage int, lastUsed *time.Time) string {
		q := &models.Question{
			Text:          text,
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Explanation:   "because",
			Category:      models.CategoryBasketball,
			Difficulty:    2,
			UsageCount:    usage,
			LastUsed:      lastUsed,
		}
		id, err := bank.Insert(ctx, q)
		require.NoError(t, err)
		require.Equal(t, id, q.ID)
		return id
	}
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	fresh := insert("never used?", 0, nil)
	stale := insert("used long ago?", 1, ago(48*time.Hour))
	insert("used recently?", 1, ago(time.Hour))
	insert("used too often?", cfg.Questions.UsageCap, ago(72*time.Hour))
	boundary := insert("used exactly a window ago?", 2, ago(cfg.Questions.FreshnessWindow))

	t.Run("find eligible", func(t *testing.T) {
		qs, err := bank.FindEligible(ctx, models.CategoryBasketball, 2, 10)
		require.NoError(t, err)
		ids := make([]string, 0, len(qs))
		for _, q := range qs {
			ids = append(ids, q.ID)
		}
		assert.Equal(t, []string{fresh, stale, boundary}, ids)
		assert.Equal(t, []string{"A", "B", "C", "D"}, qs[0].Options)
		assert.Nil(t, qs[0].LastUsed)

		qs, err = bank.FindEligible(ctx, models.CategoryBasketball, 2, 1)
		require.NoError(t, err)
		assert.Len(t, qs, 1)

		qs, err = bank.FindEligible(ctx, models.CategoryFootball, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, qs)
	})

	t.Run("duplicate text", func(t *testing.T) {
		_, err := bank.Insert(ctx, &models.Question{
			Text:          "  NEVER   used? ",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Category:      models.CategoryBasketball,
			Difficulty:    3,
		})
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrRecordExists))
	})

	t.Run("record selection", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := bank.RecordSelection(ctx, fresh)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		q, err := bank.RecordSelection(ctx, fresh)
		require.NoError(t, err)
		assert.Equal(t, 6, q.UsageCount)
		require.NotNil(t, q.LastUsed)
		assert.WithinDuration(t, now, *q.LastUsed, time.Second)

		_, err = bank.RecordSelection(ctx, "00000000-0000-0000-0000-000000000000")
		assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
		_, err = bank.RecordSelection(ctx, "not-a-uuid")
		assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))
	})

	t.Run("recent texts", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			bank.now = func() time.Time { return now.Add(time.Duration(i+1) * time.Minute) }
			_, err := bank.Insert(ctx, &models.Question{
				Text:          fmt.Sprintf("soccer %d?", i),
				Options:       []string{"A", "B", "C", "D"},
				CorrectAnswer: "A",
				Category:      models.CategorySoccer,
				Difficulty:    1,
			})
			require.NoError(t, err)
		}
		bank.now = func() time.Time { return now }

		texts, err := bank.RecentTexts(ctx, models.CategorySoccer, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"soccer 2?", "soccer 1?"}, texts)

		texts, err = bank.RecentTexts(ctx, "", 100)
		require.NoError(t, err)
		assert.Len(t, texts, 8)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := bank.Stats(ctx)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, models.BankStat{Category: models.CategoryBasketball, Difficulty: 2, Total: 5, Eligible: 2, Unused: 0}, stats[0])
		assert.Equal(t, models.BankStat{Category: models.CategorySoccer, Difficulty: 1, Total: 3, Eligible: 3, Unused: 3}, stats[1])
	})
}
