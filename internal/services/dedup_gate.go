package services

import (
	"context"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	"sportstrivia/internal/similarity"

	"go.opentelemetry.io/otel/attribute"
)

// DedupGateInterface decides whether a candidate question text repeats a recent one
type DedupGateInterface interface {
	IsDuplicate(ctx context.Context, candidate string, threshold float64, scope models.Category) (bool, error)
}

// DedupGate compares a candidate against the most recent bank texts
type DedupGate struct {
	bank   QuestionBankInterface
	cfg    *config.Config
	logger *observability.Logger
}

// NewDedupGateWithLogger creates a dedup gate over bank
func NewDedupGateWithLogger(bank QuestionBankInterface, cfg *config.Config, logger *observability.Logger) *DedupGate {
	return &DedupGate{
		bank:   bank,
		cfg:    cfg,
		logger: logger,
	}
}

// IsDuplicate reports whether any of the last questions.recent_window texts in scope
// is strictly more similar than threshold. An empty scope checks the whole bank.
func (g *DedupGate) IsDuplicate(ctx context.Context, candidate string, threshold float64, scope models.Category) (result0 bool, err error) {
	ctx, span := observability.TraceDedupFunction(ctx, "is_duplicate",
		observability.AttributeCategory(scope),
		attribute.Float64("dedup.threshold", threshold),
	)
	defer observability.FinishSpan(span, &err)

	recent, err := g.bank.RecentTexts(ctx, scope, g.cfg.Questions.RecentWindow)
	if err != nil {
		return false, err
	}

	match, score, ok := similarity.MostSimilar(candidate, recent)
	span.SetAttributes(
		attribute.Int("dedup.compared", len(recent)),
		attribute.Float64("dedup.best_score", score),
	)
	if !ok || score <= threshold {
		return false, nil
	}

	g.logger.Debug(ctx, "Candidate rejected as duplicate", map[string]interface{}{
		"category":  string(scope),
		"candidate": candidate,
		"match":     match,
		"score":     score,
		"threshold": threshold,
	})
	return true, nil
}
