package embedding

import (
	"context"
	"errors"
)

var (
	ErrEmptyText   = errors.New("text is empty")
	ErrTextTooLong = errors.New("text exceeds supported length")
	ErrZeroVector  = errors.New("embedding has zero magnitude")
)

// Service defines the interface for embedding operations.
//
// Implementations are deterministic for identical input and return
// L2-normalized vectors of a fixed dimensionality.
type Service interface {
	Get(ctx context.Context, text string) ([]float32, error)
}
