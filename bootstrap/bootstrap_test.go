package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"semantic_cache/config"
	"semantic_cache/engine"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Embedding.Provider = "hashing"
	cfg.Completion.Provider = "mock"
	cfg.Store.Backend = "memory"
	cfg.Cache.Dimensions = 64
	return cfg
}

func TestNewLocalStack(t *testing.T) {
	cfg := localConfig(t)
	c, err := New(context.Background(), cfg, zaptest.NewLogger(t), prometheus.NewRegistry())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Maintainer()
	assert.True(t, ok)
	require.NotNil(t, c.Metrics)

	ctx := context.Background()
	first, err := c.Engine.Answer(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, engine.SourceGenerated, first.Source)

	second, err := c.Engine.Answer(ctx, "what is the capital of france")
	require.NoError(t, err)
	assert.Equal(t, engine.SourceCache, second.Source)
	assert.Equal(t, first.Answer, second.Answer)
}

func TestEngineConfig(t *testing.T) {
	cfg := localConfig(t)
	cfg.Cache.SimilarityThreshold = 0.85
	cfg.Cache.QueryTimeout = time.Second
	cfg.Completion.Model = "gpt-4o-mini"

	ec := EngineConfig(cfg)
	assert.Equal(t, float32(0.85), ec.Threshold)
	assert.Equal(t, 64, ec.Dimensions)
	assert.Equal(t, time.Second, ec.QueryTimeout)
	assert.Equal(t, "gpt-4o-mini", ec.Model)
}

func TestUnknownBackends(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	cfg := localConfig(t)
	cfg.Embedding.Provider = "word2vec"
	_, _, err := NewEmbedder(ctx, cfg, logger)
	assert.Error(t, err)

	cfg = localConfig(t)
	cfg.Completion.Provider = "llama"
	_, _, err = NewCompleter(ctx, cfg, logger)
	assert.Error(t, err)

	cfg = localConfig(t)
	cfg.Store.Backend = "sqlite"
	_, _, err = NewStore(ctx, cfg, logger)
	assert.Error(t, err)
}

func TestGeminiRequiresKey(t *testing.T) {
	cfg := localConfig(t)
	cfg.Completion.Provider = "gemini"
	cfg.GeminiAPIKey = ""

	_, err := New(context.Background(), cfg, zaptest.NewLogger(t), nil)
	assert.Error(t, err)
}

func TestRemoteClientsAreLazy(t *testing.T) {
	cfg := localConfig(t)
	cfg.Embedding.Provider = "grpc"
	cfg.Completion.Provider = "grpc"
	cfg.Store.Backend = "grpc"

	c, err := New(context.Background(), cfg, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	assert.Nil(t, c.Metrics)
	assert.NoError(t, c.Close())
}
