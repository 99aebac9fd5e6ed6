package services

import (
	"context"
	"sync/atomic"

	"sportstrivia/internal/config"
	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"
)

// CompletionRequest is one prompt sent to a text generation backend
type CompletionRequest struct {
	System string
	Prompt string
	// Grammar is a JSON schema forwarded to backends that constrain decoding with it
	Grammar string
}

// TextGenerator produces raw reply text for a prompt.
// Transport and API failures are reported as contextutils.ErrGenerationUpstream,
// malformed envelopes as contextutils.ErrGenerationInvalidResponse.
type TextGenerator interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// GeneratorSettings is the resolved provider, model and sampling configuration
type GeneratorSettings struct {
	Provider    config.ProviderConfig
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// ResolveGeneratorSettings picks the active provider and model from cfg.
// generation.api_key wins over the provider's key; a model's max_tokens wins over generation.max_tokens.
func ResolveGeneratorSettings(cfg *config.Config) (GeneratorSettings, error) {
	provider, ok := cfg.ActiveProvider()
	if !ok {
		return GeneratorSettings{}, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unknown generation provider %q", cfg.Generation.Provider)
	}

	s := GeneratorSettings{
		Provider:    provider,
		Model:       cfg.Generation.Model,
		APIKey:      cfg.Generation.APIKey,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}
	if s.APIKey == "" {
		s.APIKey = provider.APIKey
	}
	if s.Model == "" {
		if len(provider.Models) == 0 {
			return GeneratorSettings{}, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "provider %q has no models configured", provider.Code)
		}
		s.Model = provider.Models[0].Code
	}
	for _, m := range provider.Models {
		if m.Code == s.Model && m.MaxTokens > 0 {
			s.MaxTokens = m.MaxTokens
		}
	}
	return s, nil
}

// NewTextGenerator builds the client for the active provider, bounded by generation.max_concurrent
func NewTextGenerator(cfg *config.Config, logger *observability.Logger) (TextGenerator, error) {
	settings, err := ResolveGeneratorSettings(cfg)
	if err != nil {
		return nil, err
	}

	var gen TextGenerator
	switch settings.Provider.Type {
	case "anthropic":
		gen = NewAnthropicClient(settings, logger)
	case "openai":
		if settings.Provider.URL == "" {
			return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "no base URL configured for provider '%s'", settings.Provider.Code)
		}
		gen = NewOpenAIClient(settings, cfg.Generation.Timeout, logger)
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unsupported provider type %q", settings.Provider.Type)
	}

	logger.Info(context.Background(), "Text generator configured", map[string]interface{}{
		"provider":       settings.Provider.Code,
		"type":           settings.Provider.Type,
		"model":          settings.Model,
		"api_key":        contextutils.MaskAPIKey(settings.APIKey),
		"max_concurrent": cfg.Generation.MaxConcurrent,
	})
	return NewLimitedTextGenerator(gen, cfg.Generation.MaxConcurrent), nil
}

// LimitedTextGenerator caps the number of in-flight requests to the wrapped generator
type LimitedTextGenerator struct {
	next      TextGenerator
	semaphore chan struct{}
	active    atomic.Int64
	total     atomic.Int64
}

// GeneratorStats is a snapshot of LimitedTextGenerator counters
type GeneratorStats struct {
	MaxConcurrent  int   `json:"max_concurrent"`
	ActiveRequests int64 `json:"active_requests"`
	TotalRequests  int64 `json:"total_requests"`
}

// NewLimitedTextGenerator wraps next with a semaphore of size maxConcurrent
func NewLimitedTextGenerator(next TextGenerator, maxConcurrent int) *LimitedTextGenerator {
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultAIMaxConcurrent
	}
	return &LimitedTextGenerator{
		next:      next,
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

// Complete waits for a free slot, then delegates
func (l *LimitedTextGenerator) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "request cancelled while waiting for AI slot: %w", ctx.Err())
	}
	l.active.Add(1)
	l.total.Add(1)
	defer func() {
		l.active.Add(-1)
		<-l.semaphore
	}()

	return l.next.Complete(ctx, req)
}

// Stats returns the current counters
func (l *LimitedTextGenerator) Stats() GeneratorStats {
	return GeneratorStats{
		MaxConcurrent:  cap(l.semaphore),
		ActiveRequests: l.active.Load(),
		TotalRequests:  l.total.Load(),
	}
}

// UnavailableTextGenerator stands in when no provider could be configured.
// Every call fails, so callers fall back to the bank or static questions.
type UnavailableTextGenerator struct {
	reason error
}

// NewUnavailableTextGenerator returns a generator that always fails with reason
func NewUnavailableTextGenerator(reason error) *UnavailableTextGenerator {
	return &UnavailableTextGenerator{reason: reason}
}

// Complete always fails
func (u *UnavailableTextGenerator) Complete(_ context.Context, _ CompletionRequest) (string, error) {
	return "", contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "text generation unavailable: %w", u.reason)
}
