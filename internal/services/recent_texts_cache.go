package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sportstrivia/internal/config"
	"sportstrivia/internal/models"
	"sportstrivia/internal/observability"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
)

// CachedQuestionBank caches RecentTexts in Redis in front of another bank.
// Redis failures are logged and the inner bank answers instead.
//
// Each scope has a version counter that Insert increments. Cached lists are
// keyed by the version read before loading, so a fill that started before an
// insert lands under a version no reader asks for again.
type CachedQuestionBank struct {
	inner  QuestionBankInterface
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *observability.Logger
}

// NewCachedQuestionBank wraps inner with a Redis recent-texts cache
func NewCachedQuestionBank(inner QuestionBankInterface, client redis.UniversalClient, cfg config.RedisConfig, logger *observability.Logger) *CachedQuestionBank {
	return &CachedQuestionBank{
		inner:  inner,
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}
}

// Keys of one scope share a hash tag so they land in the same cluster slot
func (c *CachedQuestionBank) scopeTag(category models.Category) string {
	scope := string(category)
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("%s:recent:{%s}", c.prefix, scope)
}

func (c *CachedQuestionBank) recentKey(category models.Category, version int64, limit int) string {
	return fmt.Sprintf("%s:v%d:%d", c.scopeTag(category), version, limit)
}

func (c *CachedQuestionBank) versionKey(category models.Category) string {
	return c.scopeTag(category) + ":version"
}

// scopeVersion returns the current version of a scope; a missing counter is 0
func (c *CachedQuestionBank) scopeVersion(ctx context.Context, category models.Category) (int64, error) {
	raw, err := c.client.Get(ctx, c.versionKey(category)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// FindEligible is not cached; usage changes on every selection
func (c *CachedQuestionBank) FindEligible(ctx context.Context, category models.Category, difficulty, limit int) ([]*models.Question, error) {
	return c.inner.FindEligible(ctx, category, difficulty, limit)
}

// RecordSelection passes through
func (c *CachedQuestionBank) RecordSelection(ctx context.Context, id string) (*models.Question, error) {
	return c.inner.RecordSelection(ctx, id)
}

// Stats passes through
func (c *CachedQuestionBank) Stats(ctx context.Context) ([]models.BankStat, error) {
	return c.inner.Stats(ctx)
}

// Insert stores q and retires the cached text lists it could appear in
func (c *CachedQuestionBank) Insert(ctx context.Context, q *models.Question) (string, error) {
	id, err := c.inner.Insert(ctx, q)
	if err != nil {
		return "", err
	}
	c.invalidate(ctx, q.Category)
	return id, nil
}

// RecentTexts serves from Redis when possible
func (c *CachedQuestionBank) RecentTexts(ctx context.Context, category models.Category, limit int) (result0 []string, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "recent_texts_cached",
		observability.AttributeCategory(category),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	version, err := c.scopeVersion(ctx, category)
	if err != nil {
		c.logger.Warn(ctx, "Recent texts cache version read failed", map[string]interface{}{"key": c.versionKey(category), "error": err.Error()})
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return c.inner.RecentTexts(ctx, category, limit)
	}

	key := c.recentKey(category, version, limit)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var texts []string
		if jsonErr := json.Unmarshal(data, &texts); jsonErr == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return texts, nil
		}
		c.logger.Warn(ctx, "Discarding malformed cached recent texts", map[string]interface{}{"key": key})
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn(ctx, "Recent texts cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	texts, err := c.inner.RecentTexts(ctx, category, limit)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(texts)
	if err != nil {
		return texts, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "Recent texts cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return texts, nil
}

// invalidate bumps the version of the category scope and the global scope.
// Lists cached under older versions expire through their TTL.
func (c *CachedQuestionBank) invalidate(ctx context.Context, category models.Category) {
	for _, scope := range []models.Category{category, ""} {
		key := c.versionKey(scope)
		if err := c.client.Incr(ctx, key).Err(); err != nil {
			c.logger.Warn(ctx, "Recent texts cache invalidation failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}
