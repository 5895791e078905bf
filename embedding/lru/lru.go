package lru

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"semantic_cache/embedding"
)

// Wrap memoizes next with an expirable LRU keyed by the exact text.
// Embeddings are deterministic, so a memoized vector is the vector the
// provider would return. size or ttl <= 0 returns next unchanged.
func Wrap(next embedding.Service, size int, ttl time.Duration, logger *zap.Logger) embedding.Service {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		next:   next,
		cache:  expirable.NewLRU[string, []float32](size, nil, ttl),
		logger: logger,
	}
}

// Service implements embedding.Service
type Service struct {
	next   embedding.Service
	cache  *expirable.LRU[string, []float32]
	logger *zap.Logger
}

// Get implements embedding.Service
func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := s.cache.Get(text); ok {
		s.logger.Debug("embedding memo hit")
		return clone(cached), nil
	}
	v, err := s.next.Get(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(text, clone(v))
	return v, nil
}

// Len returns the number of memoized vectors
func (s *Service) Len() int {
	return s.cache.Len()
}

func clone(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
