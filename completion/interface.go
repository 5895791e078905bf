package completion

import (
	"context"
	"errors"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrEmptyAnswer   = errors.New("completion returned no content")
	// ErrRateLimited is returned when the local limiter or the upstream
	// provider refuses the call.
	ErrRateLimited = errors.New("completion rate limited")
)

// Service defines the interface for answer generation
type Service interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
