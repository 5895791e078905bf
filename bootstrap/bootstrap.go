// Package bootstrap builds the providers, the store and the engine from
// configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"semantic_cache/cache"
	cachegrpc "semantic_cache/cache/grpc"
	"semantic_cache/cache/memory"
	"semantic_cache/cache/postgres"
	"semantic_cache/cache/qdrant"
	"semantic_cache/cache/redis"
	"semantic_cache/completion"
	completiongemini "semantic_cache/completion/gemini"
	completiongrpc "semantic_cache/completion/grpc"
	"semantic_cache/completion/mock"
	completionopenai "semantic_cache/completion/openai"
	"semantic_cache/config"
	"semantic_cache/embedding"
	embeddinggemini "semantic_cache/embedding/gemini"
	embeddinggrpc "semantic_cache/embedding/grpc"
	"semantic_cache/embedding/hashing"
	"semantic_cache/embedding/lru"
	embeddingopenai "semantic_cache/embedding/openai"
	"semantic_cache/engine"
	"semantic_cache/retry"
)

// Closer releases a resource created by a constructor
type Closer func() error

func nopCloser() error { return nil }

// Components is everything the gateway needs to answer questions
type Components struct {
	Embedder  embedding.Service
	Store     cache.Store
	Completer completion.Service
	Engine    *engine.Engine
	Metrics   *engine.Metrics

	closers []Closer
}

// Maintainer returns the store's maintenance interface when it has one
func (c *Components) Maintainer() (cache.Maintainer, bool) {
	m, ok := c.Store.(cache.Maintainer)
	return m, ok
}

// Close releases every resource in reverse creation order
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// New wires the three collaborators into an engine. reg may be nil to
// skip metrics.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{}

	embedder, closeEmbedder, err := NewEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder
	c.closers = append(c.closers, closeEmbedder)

	store, closeStore, err := NewStore(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = store
	c.closers = append(c.closers, closeStore)

	completer, closeCompleter, err := NewCompleter(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Completer = completer
	c.closers = append(c.closers, closeCompleter)

	opts := []engine.Option{engine.WithLogger(logger.Named("engine"))}
	if reg != nil {
		m, err := engine.NewMetrics(reg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("fail to register metrics: %w", err)
		}
		c.Metrics = m
		opts = append(opts, engine.WithMetrics(m))
	}

	c.Engine, err = engine.New(EngineConfig(cfg), embedder, store, completer, opts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("fail to create engine: %w", err)
	}
	return c, nil
}

// EngineConfig maps the cache settings onto the engine
func EngineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Threshold:         float32(cfg.Cache.SimilarityThreshold),
		Dimensions:        cfg.Cache.Dimensions,
		TopK:              cfg.Cache.TopK,
		EmbedTimeout:      cfg.Cache.EmbedTimeout,
		QueryTimeout:      cfg.Cache.QueryTimeout,
		InsertTimeout:     cfg.Cache.InsertTimeout,
		CompletionTimeout: cfg.Cache.CompletionTimeout,
		Model:             cfg.Completion.Model,
		FallbackAnswer:    cfg.Cache.FallbackAnswer,
	}
}

// NewEmbedder builds the configured provider, then adds retries and the
// memo in that order.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (embedding.Service, Closer, error) {
	var (
		svc    embedding.Service
		closer Closer = nopCloser
	)
	dims := cfg.Cache.Dimensions

	switch cfg.Embedding.Provider {
	case "hashing":
		svc = hashing.New(dims)
	case "openai":
		opts := []embeddingopenai.Option{
			embeddingopenai.WithDimensions(dims),
			embeddingopenai.WithBaseURL(cfg.OpenAIBaseURL),
		}
		if cfg.Embedding.Model != "" {
			opts = append(opts, embeddingopenai.WithModel(cfg.Embedding.Model))
		}
		svc = embeddingopenai.New(cfg.OpenAIAPIKey, opts...)
	case "gemini":
		g, err := embeddinggemini.New(ctx, cfg.GeminiAPIKey, cfg.Embedding.Model, dims)
		if err != nil {
			return nil, nil, fmt.Errorf("fail to create gemini embedder: %w", err)
		}
		svc = g
	case "grpc":
		client, err := embeddinggrpc.NewClient(cfg.Embedding.Addr)
		if err != nil {
			return nil, nil, err
		}
		svc, closer = client, client.Close
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	svc = embedding.WithRetry(svc, retry.DefaultPolicy(cfg.Embedding.MaxRetries), logger.Named("embedding"))
	svc = lru.Wrap(svc, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL, logger.Named("embedding"))
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.Int("dimensions", dims))
	return svc, closer, nil
}

// NewCompleter builds the configured generator. The rate limiter sits
// inside the retries so every attempt takes a token.
func NewCompleter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (completion.Service, Closer, error) {
	var (
		svc    completion.Service
		closer Closer = nopCloser
	)

	switch cfg.Completion.Provider {
	case "gemini":
		g, err := completiongemini.New(ctx, cfg.GeminiAPIKey, cfg.Completion.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("fail to create gemini completer: %w", err)
		}
		svc = g
	case "openai":
		svc = completionopenai.New(cfg.OpenAIAPIKey, cfg.Completion.Model, cfg.OpenAIBaseURL)
	case "mock":
		svc = mock.New(0)
	case "grpc":
		client, err := completiongrpc.NewClient(cfg.Completion.Addr)
		if err != nil {
			return nil, nil, err
		}
		svc, closer = client, client.Close
	default:
		return nil, nil, fmt.Errorf("unknown completion provider %q", cfg.Completion.Provider)
	}

	svc = completion.WithRateLimit(svc, cfg.Completion.RateLimit, cfg.Completion.Burst)
	svc = completion.WithRetry(svc, retry.DefaultPolicy(cfg.Completion.MaxRetries), logger.Named("completion"))
	logger.Info("completion provider ready", zap.String("provider", cfg.Completion.Provider))
	return svc, closer, nil
}

// NewStore connects to the configured vector store
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, Closer, error) {
	dims := cfg.Cache.Dimensions
	sc := cfg.Store

	var (
		store  cache.Store
		closer Closer = nopCloser
	)
	switch sc.Backend {
	case "memory":
		store = memory.New(dims)
	case "qdrant":
		s, err := qdrant.New(ctx, qdrant.Config{
			Host:           sc.QdrantHost,
			Port:           sc.QdrantPort,
			APIKey:         sc.QdrantAPIKey,
			CollectionName: sc.QdrantCollection,
			Dimensions:     dims,
		}, logger.Named("qdrant"))
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s.Close
	case "pgvector":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:        sc.PostgresDSN,
			Table:      sc.PostgresTable,
			Dimensions: dims,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
		closer = func() error {
			s.Close()
			return nil
		}
	case "redis":
		s, err := redis.New(ctx, redis.Config{
			Addr:       sc.RedisAddr,
			Password:   sc.RedisPassword,
			Index:      sc.RedisIndex,
			Dimensions: dims,
		})
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s.Close
	case "grpc":
		client, err := cachegrpc.NewClient(sc.Addr)
		if err != nil {
			return nil, nil, err
		}
		store, closer = client, client.Close
	default:
		return nil, nil, fmt.Errorf("unknown cache store %q", sc.Backend)
	}

	logger.Info("vector store ready", zap.String("backend", sc.Backend), zap.Int("dimensions", dims))
	return store, closer, nil
}
