package services

import (
	"context"

	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"go.opentelemetry.io/otel/attribute"
)

// AnthropicClient generates text through the Anthropic Messages API
type AnthropicClient struct {
	client   anthropic.Client
	settings GeneratorSettings
	logger   *observability.Logger
}

// NewAnthropicClient creates a Messages API client. provider.url, when set, overrides the API base URL.
func NewAnthropicClient(settings GeneratorSettings, logger *observability.Logger) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(settings.APIKey)}
	if settings.Provider.URL != "" {
		opts = append(opts, option.WithBaseURL(settings.Provider.URL))
	}
	return &AnthropicClient{
		client:   anthropic.NewClient(opts...),
		settings: settings,
		logger:   logger,
	}
}

// Complete sends one message and returns the first text block of the reply
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (result0 string, err error) {
	ctx, span := observability.TraceGeneratorFunction(ctx, "call_anthropic",
		attribute.String("ai.provider", c.settings.Provider.Code),
		attribute.String("ai.model", c.settings.Model),
		attribute.Int("prompt.length", len(req.Prompt)),
	)
	defer observability.FinishSpan(span, &err)

	if req.Prompt == "" {
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "prompt cannot be empty")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.settings.Model),
		MaxTokens:   int64(c.settings.MaxTokens),
		Temperature: param.NewOpt(c.settings.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "anthropic request failed: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("ai.input_tokens", message.Usage.InputTokens),
		attribute.Int64("ai.output_tokens", message.Usage.OutputTokens),
	)

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", contextutils.WrapError(contextutils.ErrGenerationInvalidResponse, "no text content in API response")
}
