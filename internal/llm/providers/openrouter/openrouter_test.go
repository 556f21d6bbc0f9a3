package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryForge/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := llm.GetProvider("openrouter", map[string]string{
		"api_key":       "or-key",
		"base_url":      srv.URL,
		"default_model": "test/model",
	})
	require.NoError(t, err)
	return p.(*Provider)
}

func TestCompleteText_SendsSystemPromptFirst(t *testing.T) {
	var got chatRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "StoryForge", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"model":"test/model","choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	})

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:       "write",
		SystemPrompt: "you are a story editor",
		Temperature:  0.9,
		MaxTokens:    8000,
	})
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, 8000, got.MaxTokens)
	assert.Equal(t, "test/model", got.Model)

	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, 7, resp.TokensUsed)
	assert.Equal(t, "OpenRouter", resp.ProviderName)
}

func TestCompleteText_HTTPErrorIsReturned(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCompleteText_NoChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestInitialize_RequiresKey(t *testing.T) {
	_, err := llm.GetProvider("openrouter", map[string]string{})
	assert.Error(t, err)
}
