package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"sportstrivia/internal/observability"
	contextutils "sportstrivia/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIRequest represents a request to the OpenAI-compatible API
type OpenAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Grammar        string          `json:"grammar,omitempty"`
}

// ResponseFormat asks the API for a JSON object reply
type ResponseFormat struct {
	Type string `json:"type"`
}

// Message represents a chat message in the API request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIResponse represents a response from the OpenAI-compatible API
type OpenAIResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the API response
type Choice struct {
	Message Message `json:"message"`
}

// APIError represents an error response from the API
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// OpenAIClient talks to any OpenAI compatible chat completions endpoint:
// OpenAI itself, Gemini's compatibility layer, or a local llama.cpp server.
type OpenAIClient struct {
	httpClient *http.Client
	settings   GeneratorSettings
	logger     *observability.Logger
}

// NewOpenAIClient creates a client with an instrumented HTTP transport
func NewOpenAIClient(settings GeneratorSettings, timeout time.Duration, logger *observability.Logger) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		settings: settings,
		logger:   logger,
	}
}

// Complete sends one chat completion request
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (result0 string, err error) {
	ctx, span := observability.TraceGeneratorFunction(ctx, "call_openai",
		attribute.String("ai.provider", c.settings.Provider.Code),
		attribute.String("ai.model", c.settings.Model),
		attribute.Int("prompt.length", len(req.Prompt)),
		attribute.Bool("grammar.enabled", req.Grammar != "" && c.settings.Provider.SupportsGrammar),
	)
	defer observability.FinishSpan(span, &err)

	if req.Prompt == "" {
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "prompt cannot be empty")
	}

	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	reqBody := OpenAIRequest{
		Model:       c.settings.Model,
		Messages:    messages,
		Temperature: c.settings.Temperature,
		MaxTokens:   c.settings.MaxTokens,
	}
	if c.settings.Provider.SupportsJSONMode {
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	if c.settings.Provider.SupportsGrammar && req.Grammar != "" {
		reqBody.Grammar = req.Grammar
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to marshal request body: %w", err)
	}

	endpoint := strings.TrimSuffix(c.settings.Provider.URL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "sportstrivia/1.0")
	if c.settings.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.settings.APIKey)
	}

	c.logger.Debug(ctx, "Making AI HTTP request", map[string]interface{}{
		"url":      endpoint,
		"model":    c.settings.Model,
		"provider": c.settings.Provider.Code,
	})

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "http_request_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "HTTP request failed after %v: %w", duration, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": err.Error()})
		}
	}()

	c.logger.Info(ctx, "AI HTTP request completed", map[string]interface{}{
		"duration":    duration.String(),
		"status_code": resp.StatusCode,
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("call.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "API request failed with status %d to %s: %s", resp.StatusCode, endpoint, string(body))
	}

	var openAIResp OpenAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		span.SetAttributes(attribute.String("call.result", "json_unmarshal_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationInvalidResponse, "failed to parse AI response as JSON: %w", err)
	}
	if openAIResp.Error != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"), attribute.String("error_type", openAIResp.Error.Type))
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationUpstream, "API error: %s", openAIResp.Error.Message)
	}
	if len(openAIResp.Choices) == 0 {
		return "", contextutils.WrapError(contextutils.ErrGenerationInvalidResponse, "no choices in AI response")
	}

	content := openAIResp.Choices[0].Message.Content
	if content == "" {
		return "", contextutils.WrapError(contextutils.ErrGenerationInvalidResponse, "AI returned empty content")
	}

	span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("content_length", len(content)))
	return content, nil
}
