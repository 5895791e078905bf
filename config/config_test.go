package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServePort)
	assert.Equal(t, 0.90, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 384, cfg.Cache.Dimensions)
	assert.Equal(t, 1, cfg.Cache.TopK)
	assert.Equal(t, 5*time.Second, cfg.Cache.EmbedTimeout)
	assert.Equal(t, 3*time.Second, cfg.Cache.QueryTimeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.CompletionTimeout)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, "gemini", cfg.Completion.Provider)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "llm_semantic_cache", cfg.Store.QdrantCollection)
	assert.Equal(t, 6334, cfg.Store.QdrantPort)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.85")
	t.Setenv("EMBEDDING_DIMENSIONS", "1536")
	t.Setenv("QUERY_TIMEOUT", "750ms")
	t.Setenv("COMPL_TIMEOUT", "12")
	t.Setenv("CACHE_STORE", "Qdrant")
	t.Setenv("PROVIDER_MAX_RETRIES", "2")
	t.Setenv("EMBEDDING_CACHE_SIZE", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 1536, cfg.Cache.Dimensions)
	assert.Equal(t, 750*time.Millisecond, cfg.Cache.QueryTimeout)
	assert.Equal(t, 12*time.Second, cfg.Cache.CompletionTimeout)
	assert.Equal(t, "qdrant", cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Embedding.MaxRetries)
	assert.Equal(t, 2, cfg.Completion.MaxRetries)
	assert.Equal(t, 1024, cfg.Embedding.CacheSize)
	assert.ErrorContains(t, cfg.Validate(), "EMBEDDING_CACHE_SIZE")
}

func TestValidateReportsUnparsableValues(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0,95")
	t.Setenv("CACHE_TOP_K", "three")
	t.Setenv("INSERT_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	// defaults are kept so the rest of the config stays usable
	assert.Equal(t, 0.90, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 3*time.Second, cfg.Cache.InsertTimeout)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `SIMILARITY_THRESHOLD must be a number, got "0,95"`)
	assert.Contains(t, err.Error(), `CACHE_TOP_K must be an integer, got "three"`)
	assert.Contains(t, err.Error(), `INSERT_TIMEOUT must be a duration, got "soon"`)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("COMPL_PROVIDER=mock\nSERVE_PORT=9090\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("COMPL_PROVIDER")
		os.Unsetenv("SERVE_PORT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Completion.Provider)
	assert.Equal(t, "9090", cfg.ServePort)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Cache.SimilarityThreshold = 1.2
	cfg.Cache.Dimensions = 0
	cfg.Cache.InsertTimeout = 0
	cfg.Store.Backend = "pgvector"
	cfg.Embedding.Provider = "word2vec"

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"SIMILARITY_THRESHOLD", "EMBEDDING_DIMENSIONS", "INSERT_TIMEOUT", "PG_DSN", "EMBEDDING_PROVIDER"} {
		assert.Contains(t, err.Error(), want)
	}
}
