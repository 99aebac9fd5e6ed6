package services

import (
	"context"
	"math/rand"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// SelectionServiceInterface returns the next question for a game turn
type SelectionServiceInterface interface {
	GetQuestion(ctx context.Context, category models.Category, difficulty int) *models.Question
}

// SelectionService reuses eligible bank questions, generates when the bank is dry,
// and falls back to static questions when neither works.
type SelectionService struct {
	bank      QuestionBankInterface
	generator QuestionGeneratorInterface
	fallback  *FallbackProvider
	cfg       *config.Config
	logger    *observability.Logger
	metrics   *observability.QuestionMetrics
	intn      func(int) int
}

// NewSelectionServiceWithLogger wires a selection service. metrics may be nil.
func NewSelectionServiceWithLogger(bank QuestionBankInterface, generator QuestionGeneratorInterface, fallback *FallbackProvider, cfg *config.Config, logger *observability.Logger, metrics *observability.QuestionMetrics) *SelectionService {
	return &SelectionService{
		bank:      bank,
		generator: generator,
		fallback:  fallback,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		intn:      rand.Intn,
	}
}

// GetQuestion never fails: every error path ends in a fallback question
func (s *SelectionService) GetQuestion(ctx context.Context, category models.Category, difficulty int) *models.Question {
	ctx, span := observability.TraceSelectionFunction(ctx, "get_question",
		observability.AttributeCategory(category),
		observability.AttributeDifficulty(difficulty),
	)
	defer span.End()

	q := s.selectQuestion(ctx, category, difficulty)
	span.SetAttributes(
		attribute.String("selection.source", string(q.Source)),
		observability.AttributeQuestionID(q.ID),
	)
	s.metrics.QuestionServed(ctx, string(category), string(q.Source))
	return q
}

func (s *SelectionService) selectQuestion(ctx context.Context, category models.Category, difficulty int) *models.Question {
	if category == "" || difficulty <= 0 {
		s.logger.Warn(ctx, "Invalid question request, serving fallback", map[string]interface{}{
			"category":   string(category),
			"difficulty": difficulty,
		})
		return s.fallback.Question(category, difficulty)
	}

	eligible, err := s.bank.FindEligible(ctx, category, difficulty, s.cfg.Questions.EligibleLimit)
	if err != nil {
		s.logger.Error(ctx, "Question bank unavailable, serving fallback", err, map[string]interface{}{
			"category":   string(category),
			"difficulty": difficulty,
		})
		return s.fallback.Question(category, difficulty)
	}

	if len(eligible) > 0 {
		picked := eligible[s.intn(len(eligible))]
		updated, err := s.bank.RecordSelection(ctx, picked.ID)
		if err != nil {
			s.logger.Warn(ctx, "Failed to record question selection", map[string]interface{}{
				"question_id": picked.ID,
				"error":       err.Error(),
			})
			picked.Source = models.SourceBank
			return picked
		}
		updated.Source = models.SourceBank
		return updated
	}

	generated, err := s.generator.Generate(ctx, category, difficulty)
	if err != nil {
		fields := map[string]interface{}{
			"category":   string(category),
			"difficulty": difficulty,
			"error_code": string(contextutils.GetErrorCode(err)),
		}
		if contextutils.IsError(err, contextutils.ErrInvalidInput) {
			s.logger.Warn(ctx, "Question request rejected by generator, serving fallback", fields)
		} else {
			s.logger.Error(ctx, "Question generation failed, serving fallback", err, fields)
		}
		return s.fallback.Question(category, difficulty)
	}
	generated.Source = models.SourceGenerated
	return generated
}
