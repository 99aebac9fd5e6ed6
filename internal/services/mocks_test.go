package services

import (
	"context"
	"testing"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTextGenerator is a mock implementation of TextGenerator
type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockQuestionBank is a mock implementation of QuestionBankInterface
type MockQuestionBank struct {
	mock.Mock
}

func (m *MockQuestionBank) FindEligible(ctx context.Context, category models.Category, difficulty, limit int) ([]*models.Question, error) {
	args := m.Called(ctx, category, difficulty, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockQuestionBank) RecordSelection(ctx context.Context, id string) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionBank) Insert(ctx context.Context, q *models.Question) (string, error) {
	args := m.Called(ctx, q)
	return args.String(0), args.Error(1)
}

func (m *MockQuestionBank) RecentTexts(ctx context.Context, category models.Category, limit int) ([]string, error) {
	args := m.Called(ctx, category, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQuestionBank) Stats(ctx context.Context) ([]models.BankStat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BankStat), args.Error(1)
}

// MockDedupGate is a mock implementation of DedupGateInterface
type MockDedupGate struct {
	mock.Mock
}

func (m *MockDedupGate) IsDuplicate(ctx context.Context, candidate string, threshold float64, scope models.Category) (bool, error) {
	args := m.Called(ctx, candidate, threshold, scope)
	return args.Bool(0), args.Error(1)
}

// MockQuestionGenerator is a mock implementation of QuestionGeneratorInterface
type MockQuestionGenerator struct {
	mock.Mock
}

func (m *MockQuestionGenerator) Generate(ctx context.Context, category models.Category, difficulty int) (*models.Question, error) {
	args := m.Called(ctx, category, difficulty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionGenerator) GenerateForBank(ctx context.Context, category models.Category, difficulty int) (*models.Question, error) {
	args := m.Called(ctx, category, difficulty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func newTestLogger() *observability.Logger {
	return observability.NewNopLogger()
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewDefaultConfig()
	require.NoError(t, err)
	cfg.Preload.Pacing = 0
	return cfg
}

// validReply builds a generator reply in the expected JSON shape
func validReply(text string) string {
	return `{"text": "` + text + `", "options": ["Michael Jordan", "LeBron James", "Kobe Bryant", "Larry Bird"], "correctAnswer": "Michael Jordan", "explanation": "Jordan won six titles with Chicago."}`
}
