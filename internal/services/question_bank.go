package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// QuestionBankInterface is the persistent question bank.
// Every store failure is reported as contextutils.ErrStoreUnavailable.
type QuestionBankInterface interface {
	// FindEligible returns up to limit eligible questions ordered by usage count then last use, never used first
	FindEligible(ctx context.Context, category models.Category, difficulty, limit int) ([]*models.Question, error)
	// RecordSelection increments the usage count, stamps last use and returns the updated record
	RecordSelection(ctx context.Context, id string) (*models.Question, error)
	// Insert stores a new question and returns its id
	Insert(ctx context.Context, q *models.Question) (string, error)
	// RecentTexts returns question texts, newest first. An empty category spans the whole bank.
	RecentTexts(ctx context.Context, category models.Category, limit int) ([]string, error)
	// Stats counts questions per category and difficulty
	Stats(ctx context.Context) ([]models.BankStat, error)
}

// pqUniqueViolation is the SQLSTATE for unique_violation
const pqUniqueViolation = "23505"

const questionSelectFields = `id, text, options, correct_answer, explanation, category, difficulty, usage_count, last_used, created_at`

// QuestionBank is the Postgres implementation of QuestionBankInterface
type QuestionBank struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
	now    func() time.Time
}

// NewQuestionBankWithLogger creates a Postgres backed question bank
func NewQuestionBankWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *QuestionBank {
	if db == nil {
		panic("database connection cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &QuestionBank{
		db:     db,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	q := &models.Question{}
	var category string
	var lastUsed sql.NullTime
	err := row.Scan(
		&q.ID,
		&q.Text,
		pq.Array(&q.Options),
		&q.CorrectAnswer,
		&q.Explanation,
		&category,
		&q.Difficulty,
		&q.UsageCount,
		&lastUsed,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.Category = models.Category(category)
	if lastUsed.Valid {
		t := lastUsed.Time
		q.LastUsed = &t
	}
	return q, nil
}

func storeError(err error, op string) error {
	return contextutils.WrapErrorf(contextutils.ErrStoreUnavailable, "failed to %s: %w", op, err)
}

// FindEligible applies the eligibility predicate in SQL
func (b *QuestionBank) FindEligible(ctx context.Context, category models.Category, difficulty, limit int) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "find_eligible",
		observability.AttributeCategory(category),
		observability.AttributeDifficulty(difficulty),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	cutoff := b.now().Add(-b.cfg.Questions.FreshnessWindow)
	query := `
		SELECT ` + questionSelectFields + `
		FROM questions
		WHERE category = $1
		  AND difficulty = $2
		  AND usage_count < $3
		  AND (last_used IS NULL OR last_used <= $4)
		ORDER BY usage_count ASC, last_used ASC NULLS FIRST
		LIMIT $5
	`

	rows, err := b.db.QueryContext(ctx, query, string(category), difficulty, b.cfg.Questions.UsageCap, cutoff, limit)
	if err != nil {
		return nil, storeError(err, "query eligible questions")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			b.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": err.Error()})
		}
	}()

	questions := make([]*models.Question, 0, limit)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, storeError(err, "scan eligible question")
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate eligible questions")
	}

	span.SetAttributes(attribute.Int("bank.eligible_count", len(questions)))
	return questions, nil
}

// RecordSelection increments usage in a single statement so concurrent selections never lose an update
func (b *QuestionBank) RecordSelection(ctx context.Context, id string) (result0 *models.Question, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "record_selection", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	if _, err := uuid.Parse(id); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "question %q not found", id)
	}

	query := `
		UPDATE questions
		SET usage_count = usage_count + 1, last_used = $2
		WHERE id = $1
		RETURNING ` + questionSelectFields

	q, err := scanQuestion(b.db.QueryRowContext(ctx, query, id, b.now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "question %s not found", id)
		}
		return nil, storeError(err, "record question selection")
	}
	return q, nil
}

// Insert stores q. A question whose normalized text already exists in the category
// is rejected with contextutils.ErrRecordExists.
func (b *QuestionBank) Insert(ctx context.Context, q *models.Question) (result0 string, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "insert",
		observability.AttributeCategory(q.Category),
		observability.AttributeDifficulty(q.Difficulty),
	)
	defer observability.FinishSpan(span, &err)

	if err := contextutils.ValidateStruct(q); err != nil {
		return "", err
	}

	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = b.now()
	}

	query := `
		INSERT INTO questions (id, text, text_fingerprint, options, correct_answer, explanation, category, difficulty, usage_count, last_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var lastUsed sql.NullTime
	if q.LastUsed != nil {
		lastUsed = sql.NullTime{Time: *q.LastUsed, Valid: true}
	}

	_, err = b.db.ExecContext(ctx, query,
		id,
		q.Text,
		Fingerprint(q.Text),
		pq.Array(q.Options),
		q.CorrectAnswer,
		q.Explanation,
		string(q.Category),
		q.Difficulty,
		q.UsageCount,
		lastUsed,
		createdAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return "", contextutils.WrapErrorf(contextutils.ErrRecordExists, "question text already in bank for %s", q.Category)
		}
		return "", storeError(err, "insert question")
	}

	q.ID = id
	q.CreatedAt = createdAt
	span.SetAttributes(observability.AttributeQuestionID(id))
	return id, nil
}

// RecentTexts returns the texts of the most recently created questions
func (b *QuestionBank) RecentTexts(ctx context.Context, category models.Category, limit int) (result0 []string, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "recent_texts",
		observability.AttributeCategory(category),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	var rows *sql.Rows
	if category == "" {
		rows, err = b.db.QueryContext(ctx, `SELECT text FROM questions ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = b.db.QueryContext(ctx, `SELECT text FROM questions WHERE category = $1 ORDER BY created_at DESC LIMIT $2`, string(category), limit)
	}
	if err != nil {
		return nil, storeError(err, "query recent texts")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			b.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": err.Error()})
		}
	}()

	texts := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, storeError(err, "scan recent text")
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate recent texts")
	}
	return texts, nil
}

// Stats counts total, eligible and never used questions per (category, difficulty)
func (b *QuestionBank) Stats(ctx context.Context) (result0 []models.BankStat, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "stats")
	defer observability.FinishSpan(span, &err)

	cutoff := b.now().Add(-b.cfg.Questions.FreshnessWindow)
	query := `
		SELECT category, difficulty,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE usage_count < $1 AND (last_used IS NULL OR last_used <= $2)),
		       COUNT(*) FILTER (WHERE usage_count = 0)
		FROM questions
		GROUP BY category, difficulty
		ORDER BY category, difficulty
	`
	rows, err := b.db.QueryContext(ctx, query, b.cfg.Questions.UsageCap, cutoff)
	if err != nil {
		return nil, storeError(err, "query bank stats")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			b.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": err.Error()})
		}
	}()

	stats := []models.BankStat{}
	for rows.Next() {
		var s models.BankStat
		var category string
		if err := rows.Scan(&category, &s.Difficulty, &s.Total, &s.Eligible, &s.Unused); err != nil {
			return nil, storeError(err, "scan bank stats")
		}
		s.Category = models.Category(category)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate bank stats")
	}
	return stats, nil
}
