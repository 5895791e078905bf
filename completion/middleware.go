package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"semantic_cache/retry"
)

// WithRateLimit guards next with a token bucket of the given rate and
// burst. A call whose wait for a token would outlive its deadline fails
// with ErrRateLimited instead of blocking. limit <= 0 disables the limiter.
func WithRateLimit(next Service, limit float64, burst int) Service {
	if limit <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(limit), burst)}
}

type rateLimited struct {
	next    Service
	limiter *rate.Limiter
}

func (r *rateLimited) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return r.next.Complete(ctx, req)
}

// WithRetry retries failed completion calls with exponential backoff.
// An empty question is never retried.
func WithRetry(next Service, policy retry.Policy, logger *zap.Logger) Service {
	if policy.MaxRetries <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retrying{next: next, policy: policy, logger: logger}
}

type retrying struct {
	next   Service
	policy retry.Policy
	logger *zap.Logger
}

func (r *retrying) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	retryable := func(err error) bool {
		return !errors.Is(err, ErrEmptyQuestion)
	}
	return retry.Do(ctx, r.policy, retryable, func(ctx context.Context) (*CompletionResponse, error) {
		return r.next.Complete(ctx, req)
	}, func(err error, wait time.Duration) {
		r.logger.Warn("completion call failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
}
