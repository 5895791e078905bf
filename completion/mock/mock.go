// Package mock provides a deterministic completion backend for local runs
// and demos where no provider credentials are available.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"semantic_cache/completion"
)

const ModelName = "mock"

type Service struct {
	delay time.Duration
	calls atomic.Int64
}

// New returns a mock that waits delay before answering, honouring ctx
func New(delay time.Duration) *Service {
	return &Service{delay: delay}
}

// Complete implements completion.Service
func (s *Service) Complete(ctx context.Context, req *completion.CompletionRequest) (*completion.CompletionResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, completion.ErrEmptyQuestion
	}
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	s.calls.Add(1)
	return &completion.CompletionResponse{
		Content:    fmt.Sprintf("Generated answer for: %s", question),
		TokenUsage: len(strings.Fields(question)),
		Model:      ModelName,
	}, nil
}

// Calls reports how many answers were produced
func (s *Service) Calls() int64 {
	return s.calls.Load()
}

var _ completion.Service = (*Service)(nil)
