package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic_cache/embedding"
)

func TestNewOptionsOverrideDefaults(t *testing.T) {
	s := New("dummy-key", WithModel("custom-model"), WithDimensions(42))
	assert.Equal(t, "custom-model", s.ModelName())
	assert.Equal(t, 42, s.Dimensions())

	s = New("dummy-key", WithModel(""), WithDimensions(0))
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
}

func TestGetAgainstCompatibleEndpoint(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "custom-model",
			"data": [{"object": "embedding", "index": 0, "embedding": [3, 4]}],
			"usage": {"prompt_tokens": 3, "total_tokens": 3}
		}`))
	}))
	defer srv.Close()

	s := New("test-key", WithModel("custom-model"), WithDimensions(2), WithBaseURL(srv.URL))
	v, err := s.Get(context.Background(), "hello world")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, v, 1e-6)

	assert.Equal(t, "custom-model", got["model"])
	assert.Equal(t, "hello world", got["input"])
	assert.EqualValues(t, 2, got["dimensions"])
}

func TestGetRejectsEmptyText(t *testing.T) {
	_, err := New("k").Get(context.Background(), "")
	assert.ErrorIs(t, err, embedding.ErrEmptyText)
}

func TestGetSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	_, err := New("k", WithBaseURL(srv.URL)).Get(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail to do embedding request")
}
