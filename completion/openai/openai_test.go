package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic_cache/completion"
)

func TestCompleteAgainstCompatibleEndpoint(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Paris."}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`))
	}))
	defer srv.Close()

	svc := New("test-key", "", srv.URL)
	resp, err := svc.Complete(context.Background(), &completion.CompletionRequest{Question: "What is the capital of France?", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Content)
	assert.Equal(t, 9, resp.TokenUsage)
	assert.Equal(t, "gpt-4o-mini", resp.Model)

	assert.Equal(t, DefaultModel, got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "What is the capital of France?", messages[0].(map[string]any)["content"])
}

func TestCompleteMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_error"}}`))
	}))
	defer srv.Close()

	_, err := New("k", "", srv.URL).Complete(context.Background(), &completion.CompletionRequest{Question: "q"})
	assert.ErrorIs(t, err, completion.ErrRateLimited)
}

func TestCompleteRejectsEmptyQuestion(t *testing.T) {
	_, err := New("k", "", "").Complete(context.Background(), &completion.CompletionRequest{Question: "  "})
	assert.ErrorIs(t, err, completion.ErrEmptyQuestion)
}
