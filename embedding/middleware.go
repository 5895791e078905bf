package embedding

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"semantic_cache/retry"
)

// WithRetry retries failed embedding calls with exponential backoff.
// Input errors are never retried.
func WithRetry(next Service, policy retry.Policy, logger *zap.Logger) Service {
	if policy.MaxRetries <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryService{next: next, policy: policy, logger: logger}
}

type retryService struct {
	next   Service
	policy retry.Policy
	logger *zap.Logger
}

func (r *retryService) Get(ctx context.Context, text string) ([]float32, error) {
	return retry.Do(ctx, r.policy, retryable, func(ctx context.Context) ([]float32, error) {
		return r.next.Get(ctx, text)
	}, func(err error, wait time.Duration) {
		r.logger.Warn("embedding call failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
}

func retryable(err error) bool {
	return !errors.Is(err, ErrEmptyText) && !errors.Is(err, ErrTextTooLong)
}
