package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sportstrivia/internal/models"
	contextutils "sportstrivia/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, bank QuestionBankInterface, textGen TextGenerator) *QuestionGenerator {
	t.Helper()
	cfg := newTestConfig(t)
	gen, err := NewQuestionGeneratorWithLogger(bank, NewDedupGateWithLogger(bank, cfg, newTestLogger()), textGen, cfg, newTestLogger(), nil)
	require.NoError(t, err)
	return gen
}

func TestQuestionGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a used question", func(t *testing.T) {
		bank := NewMemoryQuestionBank(newTestConfig(t))
		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).Return(validReply("Who won six titles with the Bulls?"), nil).Once()

		gen := newTestGenerator(t, bank, textGen)
		fixed := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
		gen.now = func() time.Time { return fixed }

		q, err := gen.Generate(ctx, models.CategoryBasketball, 3)
		require.NoError(t, err)

		assert.NotEmpty(t, q.ID)
		assert.Equal(t, models.SourceGenerated, q.Source)
		assert.Equal(t, 1, q.UsageCount)
		require.NotNil(t, q.LastUsed)
		assert.Equal(t, fixed, *q.LastUsed)
		assert.Equal(t, fixed, q.CreatedAt)

		stored, ok := bank.Get(q.ID)
		require.True(t, ok)
		assert.Equal(t, 1, stored.UsageCount)
		assert.Equal(t, models.CategoryBasketball, stored.Category)
		assert.Equal(t, 3, stored.Difficulty)
		textGen.AssertExpectations(t)
	})

	t.Run("bank generation leaves the question unused", func(t *testing.T) {
		bank := NewMemoryQuestionBank(newTestConfig(t))
		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).Return(validReply("Preloaded?"), nil).Once()

		q, err := newTestGenerator(t, bank, textGen).GenerateForBank(ctx, models.CategoryBasketball, 2)
		require.NoError(t, err)
		assert.Equal(t, 0, q.UsageCount)
		assert.Nil(t, q.LastUsed)
	})

	t.Run("prompt carries sport material and recent texts", func(t *testing.T) {
		bank := NewMemoryQuestionBank(newTestConfig(t))
		_, err := bank.Insert(ctx, testQuestion(models.CategoryFootball, 3, "Which team plays at Lambeau Field?"))
		require.NoError(t, err)

		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.MatchedBy(func(req CompletionRequest) bool {
			return strings.Contains(req.Prompt, "(Field Goal)") &&
				strings.Contains(req.Prompt, "- Which team plays at Lambeau Field?") &&
				strings.Contains(req.System, "multiple choice") &&
				req.Grammar == QuestionReplySchema
		})).Return(validReply("Who kicks field goals?"), nil).Once()

		_, err = newTestGenerator(t, bank, textGen).Generate(ctx, models.CategoryFootball, 3)
		require.NoError(t, err)
		textGen.AssertExpectations(t)
	})

	t.Run("malformed reply is rejected and not inserted", func(t *testing.T) {
		bank := NewMemoryQuestionBank(newTestConfig(t))
		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).
			Return(`{"text": "Q?", "options": ["A", "B", "C", "D"], "correctAnswer": "E", "explanation": ""}`, nil).Once()

		_, err := newTestGenerator(t, bank, textGen).Generate(ctx, models.CategoryBasketball, 2)
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrGenerationInvalidResponse))
		assert.Equal(t, 0, bank.Len())
	})

	t.Run("upstream failure", func(t *testing.T) {
		bank := NewMemoryQuestionBank(newTestConfig(t))
		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("connection refused")).Once()

		_, err := newTestGenerator(t, bank, textGen).Generate(ctx, models.CategoryBasketball, 2)
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrGenerationUpstream))
		assert.True(t, contextutils.IsGenerationFailure(err))
	})

	t.Run("duplicates are retried then exhausted", func(t *testing.T) {
		bank := NewMemoryQuestionBank(newTestConfig(t))
		_, err := bank.Insert(ctx, testQuestion(models.CategoryFootball, 6, "How many points is a touchdown worth?"))
		require.NoError(t, err)

		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).
			Return(validReply("How many points is a touchdown worth in football?"), nil).Times(3)

		_, err = newTestGenerator(t, bank, textGen).Generate(ctx, models.CategoryFootball, 6)
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrGenerationExhausted))
		assert.Equal(t, 1, bank.Len())
		textGen.AssertNumberOfCalls(t, "Complete", 3)
	})

	t.Run("rejected candidate is added to the avoid list", func(t *testing.T) {
		bank := NewMemoryQuestionBank(newTestConfig(t))
		_, err := bank.Insert(ctx, testQuestion(models.CategoryFootball, 6, "How many points is a touchdown worth?"))
		require.NoError(t, err)

		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).
			Return(validReply("How many points is a touchdown worth in football?"), nil).Once()
		textGen.On("Complete", mock.Anything, mock.MatchedBy(func(req CompletionRequest) bool {
			return strings.Contains(req.Prompt, "- How many points is a touchdown worth in football?")
		})).Return(validReply("Who won the 2020 Super Bowl?"), nil).Once()

		q, err := newTestGenerator(t, bank, textGen).Generate(ctx, models.CategoryFootball, 6)
		require.NoError(t, err)
		assert.Equal(t, "Who won the 2020 Super Bowl?", q.Text)
		assert.Equal(t, 2, bank.Len())
	})

	t.Run("fingerprint conflict counts as a duplicate", func(t *testing.T) {
		cfg := newTestConfig(t)
		bank := new(MockQuestionBank)
		bank.On("RecentTexts", mock.Anything, models.CategorySoccer, cfg.Questions.PromptRecentCount).Return([]string{}, nil)
		bank.On("Insert", mock.Anything, mock.Anything).Return("", contextutils.ErrRecordExists).Once()
		bank.On("Insert", mock.Anything, mock.Anything).Return("new-id", nil).Once()

		dedup := new(MockDedupGate)
		dedup.On("IsDuplicate", mock.Anything, mock.Anything, cfg.Questions.DefaultDedupThreshold, models.CategorySoccer).Return(false, nil)

		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).Return(validReply("Who scored?"), nil).Once()
		textGen.On("Complete", mock.Anything, mock.Anything).Return(validReply("Who saved?"), nil).Once()

		gen, err := NewQuestionGeneratorWithLogger(bank, dedup, textGen, cfg, newTestLogger(), nil)
		require.NoError(t, err)

		q, err := gen.Generate(ctx, models.CategorySoccer, 1)
		require.NoError(t, err)
		assert.Equal(t, "Who saved?", q.Text)
		bank.AssertNumberOfCalls(t, "Insert", 2)
	})

	t.Run("dedup failure does not block generation", func(t *testing.T) {
		cfg := newTestConfig(t)
		bank := new(MockQuestionBank)
		bank.On("RecentTexts", mock.Anything, models.CategorySoccer, cfg.Questions.PromptRecentCount).Return(nil, contextutils.ErrStoreUnavailable)
		bank.On("Insert", mock.Anything, mock.Anything).Return("id-1", nil).Once()

		dedup := new(MockDedupGate)
		dedup.On("IsDuplicate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, contextutils.ErrStoreUnavailable)

		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).Return(validReply("Who scored?"), nil).Once()

		gen, err := NewQuestionGeneratorWithLogger(bank, dedup, textGen, cfg, newTestLogger(), nil)
		require.NoError(t, err)

		_, err = gen.Generate(ctx, models.CategorySoccer, 1)
		assert.NoError(t, err)
	})

	t.Run("insert failure surfaces as store unavailable", func(t *testing.T) {
		cfg := newTestConfig(t)
		bank := new(MockQuestionBank)
		bank.On("RecentTexts", mock.Anything, mock.Anything, mock.Anything).Return([]string{}, nil)
		bank.On("Insert", mock.Anything, mock.Anything).Return("", contextutils.ErrStoreUnavailable).Once()

		dedup := new(MockDedupGate)
		dedup.On("IsDuplicate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

		textGen := new(MockTextGenerator)
		textGen.On("Complete", mock.Anything, mock.Anything).Return(validReply("Who scored?"), nil).Once()

		gen, err := NewQuestionGeneratorWithLogger(bank, dedup, textGen, cfg, newTestLogger(), nil)
		require.NoError(t, err)

		_, err = gen.Generate(ctx, models.CategorySoccer, 1)
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrStoreUnavailable))
	})
}

func TestQuestionGenerator_InvalidInput(t *testing.T) {
	bank := NewMemoryQuestionBank(newTestConfig(t))
	textGen := new(MockTextGenerator)
	gen := newTestGenerator(t, bank, textGen)

	tests := []struct {
		name       string
		category   models.Category
		difficulty int
	}{
		{"empty category", "", 2},
		{"zero difficulty", models.CategoryBasketball, 0},
		{"negative difficulty", models.CategoryBasketball, -3},
		{"unknown sport", "curling", 1},
		{"illegal point value", models.CategoryFootball, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Generate(context.Background(), tt.category, tt.difficulty)
			require.Error(t, err)
			assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
		})
	}
	textGen.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
