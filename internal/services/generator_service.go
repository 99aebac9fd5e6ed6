package services

import (
	"context"
	"math/rand"
	"time"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Generation outcomes recorded on the attempts counter
const (
	generationResultSuccess   = "success"
	generationResultDuplicate = "duplicate"
	generationResultInvalid   = "invalid_response"
	generationResultUpstream  = "upstream_error"
	generationResultStore     = "store_error"
)

// QuestionGeneratorInterface creates new bank questions through the text generator
type QuestionGeneratorInterface interface {
	// Generate creates a question that is served right away: it is stored as used once
	Generate(ctx context.Context, category models.Category, difficulty int) (*models.Question, error)
	// GenerateForBank creates an unused question for later selection
	GenerateForBank(ctx context.Context, category models.Category, difficulty int) (*models.Question, error)
}

// QuestionGenerator prompts the text generator, validates and dedups the reply, then stores it
type QuestionGenerator struct {
	bank      QuestionBankInterface
	dedup     DedupGateInterface
	textGen   TextGenerator
	templates *PromptTemplateManager
	cfg       *config.Config
	logger    *observability.Logger
	metrics   *observability.QuestionMetrics
	// inlineSchema puts the reply schema in the prompt when the provider has no grammar support
	inlineSchema bool
	now          func() time.Time
	intn         func(int) int
}

// NewQuestionGeneratorWithLogger wires a generator. metrics may be nil.
func NewQuestionGeneratorWithLogger(bank QuestionBankInterface, dedup DedupGateInterface, textGen TextGenerator, cfg *config.Config, logger *observability.Logger, metrics *observability.QuestionMetrics) (*QuestionGenerator, error) {
	templates, err := NewPromptTemplateManager()
	if err != nil {
		return nil, err
	}
	inlineSchema := true
	if provider, ok := cfg.ActiveProvider(); ok && provider.SupportsGrammar {
		inlineSchema = false
	}
	return &QuestionGenerator{
		bank:         bank,
		dedup:        dedup,
		textGen:      textGen,
		templates:    templates,
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		inlineSchema: inlineSchema,
		now:          time.Now,
		intn:         rand.Intn,
	}, nil
}

// Generate creates a question stored with usage count 1 and last use now
func (g *QuestionGenerator) Generate(ctx context.Context, category models.Category, difficulty int) (*models.Question, error) {
	return g.generate(ctx, category, difficulty, true)
}

// GenerateForBank creates a question stored with usage count 0 and no last use
func (g *QuestionGenerator) GenerateForBank(ctx context.Context, category models.Category, difficulty int) (*models.Question, error) {
	return g.generate(ctx, category, difficulty, false)
}

func (g *QuestionGenerator) generate(ctx context.Context, category models.Category, difficulty int, markUsed bool) (result0 *models.Question, err error) {
	ctx, span := observability.TraceGeneratorFunction(ctx, "generate",
		observability.AttributeCategory(category),
		observability.AttributeDifficulty(difficulty),
		attribute.Bool("generation.mark_used", markUsed),
	)
	defer observability.FinishSpan(span, &err)

	if category == "" || difficulty <= 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "category and a positive difficulty are required (got %q, %d)", category, difficulty)
	}
	sport, ok := g.cfg.Sport(string(category))
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown sport %q", category)
	}
	point, ok := g.cfg.PointValue(string(category), difficulty)
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "%d is not a point value for %s", difficulty, category)
	}

	avoid, err := g.bank.RecentTexts(ctx, category, g.cfg.Questions.PromptRecentCount)
	if err != nil {
		g.logger.Warn(ctx, "Could not load recent questions for prompt", map[string]interface{}{
			"category": string(category),
			"error":    err.Error(),
		})
		avoid = nil
	}

	system, err := g.templates.Render(QuestionSystemTemplate, PromptData{})
	if err != nil {
		return nil, err
	}
	threshold := g.cfg.DedupThreshold(string(category))
	maxAttempts := g.cfg.Questions.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		span.SetAttributes(observability.AttributeAttempt(attempt))

		data := BuildPromptData(category, sport, point, PickFocusHint(g.intn, point.Hints), avoid)
		if g.inlineSchema {
			data.Schema = QuestionReplySchema
		}
		prompt, err := g.templates.Render(QuestionPromptTemplate, data)
		if err != nil {
			return nil, err
		}

		raw, err := g.textGen.Complete(ctx, CompletionRequest{System: system, Prompt: prompt, Grammar: QuestionReplySchema})
		if err != nil {
			g.metrics.GenerationAttempt(ctx, string(category), generationResultUpstream)
			if !contextutils.IsGenerationFailure(err) {
				err = contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "text generation failed: %w", err)
			}
			return nil, err
		}

		reply, err := ParseQuestionReply(raw)
		if err != nil {
			g.metrics.GenerationAttempt(ctx, string(category), generationResultInvalid)
			g.logger.Warn(ctx, "Generator reply rejected", map[string]interface{}{
				"category":   string(category),
				"difficulty": difficulty,
				"attempt":    attempt,
				"error":      err.Error(),
			})
			return nil, err
		}

		duplicate, err := g.dedup.IsDuplicate(ctx, reply.Text, threshold, category)
		if err != nil {
			// the unique fingerprint index still blocks exact repeats
			g.logger.Warn(ctx, "Dedup check failed, accepting candidate", map[string]interface{}{
				"category": string(category),
				"error":    err.Error(),
			})
			duplicate = false
		}
		if duplicate {
			g.metrics.GenerationAttempt(ctx, string(category), generationResultDuplicate)
			avoid = append(avoid, reply.Text)
			continue
		}

		q := reply.toQuestion(category, difficulty)
		now := g.now()
		q.CreatedAt = now
		if markUsed {
			q.UsageCount = 1
			q.LastUsed = &now
		}

		id, err := g.bank.Insert(ctx, q)
		if err != nil {
			if contextutils.IsError(err, contextutils.ErrRecordExists) {
				g.metrics.GenerationAttempt(ctx, string(category), generationResultDuplicate)
				avoid = append(avoid, reply.Text)
				continue
			}
			g.metrics.GenerationAttempt(ctx, string(category), generationResultStore)
			return nil, err
		}

		g.metrics.GenerationAttempt(ctx, string(category), generationResultSuccess)
		q.ID = id
		q.Source = models.SourceGenerated
		g.logger.Info(ctx, "Generated question stored", map[string]interface{}{
			"question_id": q.ID,
			"category":    string(category),
			"difficulty":  difficulty,
			"attempt":     attempt,
		})
		return q, nil
	}

	return nil, contextutils.WrapErrorf(contextutils.ErrGenerationExhausted,
		"every candidate for %s/%d was a duplicate after %d attempts", category, difficulty, maxAttempts)
}
