package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sportstrivia/internal/config"
	contextutils "sportstrivia/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClient_Complete(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "{\"text\": \"Q?\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 34}
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(GeneratorSettings{
		Provider:    config.ProviderConfig{Code: "anthropic", Type: "anthropic", URL: server.URL},
		Model:       "claude-haiku-4-5",
		APIKey:      "sk-ant-test",
		Temperature: 0.5,
		MaxTokens:   256,
	}, newTestLogger())

	out, err := client.Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "user"})
	require.NoError(t, err)
	assert.Equal(t, `{"text": "Q?"}`, out)

	assert.Equal(t, "claude-haiku-4-5", got["model"])
	assert.EqualValues(t, 256, got["max_tokens"])
	assert.EqualValues(t, 0.5, got["temperature"])
	require.NotNil(t, got["system"])
	messages, ok := got["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
}

func TestAnthropicClient_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`))
		}))
		defer server.Close()

		client := NewAnthropicClient(GeneratorSettings{
			Provider: config.ProviderConfig{URL: server.URL},
			Model:    "claude-haiku-4-5",
		}, newTestLogger())
		_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrGenerationUpstream))
	})

	t.Run("no text block", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "msg_02", "type": "message", "role": "assistant", "model": "m", "content": [], "usage": {"input_tokens": 1, "output_tokens": 0}}`))
		}))
		defer server.Close()

		client := NewAnthropicClient(GeneratorSettings{
			Provider: config.ProviderConfig{URL: server.URL},
			Model:    "m",
		}, newTestLogger())
		_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
		require.Error(t, err)
		assert.True(t, contextutils.IsError(err, contextutils.ErrGenerationInvalidResponse))
	})
}
