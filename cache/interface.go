package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDimensionMismatch is returned when a vector does not have the
	// dimensionality the store was created with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNotFound is returned by maintenance lookups for unknown ids.
	ErrNotFound = errors.New("record not found")
)

// Store defines the vector store operations used by the decision engine.
//
// Scores are cosine similarity in [-1, 1], highest first. Backends that
// natively report a distance convert it before returning.
type Store interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Result, error)
	Insert(ctx context.Context, record Record) error
}

// Maintainer is implemented by stores that support test and maintenance
// tooling. The decision engine never calls it.
type Maintainer interface {
	Count(ctx context.Context) (int, error)
	// Get returns one record including its vector, or ErrNotFound
	Get(ctx context.Context, id string) (*Record, error)
	// Delete removes every id or none of them; any unknown id is
	// ErrNotFound
	Delete(ctx context.Context, ids ...string) error
	Purge(ctx context.Context) error
}

// Record is a persisted question/answer pair keyed by its embedding
type Record struct {
	ID        string
	Vector    []float32
	Question  string
	Answer    string
	Model     string
	CreatedAt time.Time
}

// Clone returns a copy of r that shares no memory with it
func (r Record) Clone() Record {
	if r.Vector != nil {
		r.Vector = append([]float32(nil), r.Vector...)
	}
	return r
}

// Result is a single similarity search hit
type Result struct {
	Record Record
	Score  float32
}

// CheckDimensions returns ErrDimensionMismatch when len(vector) != dimensions.
func CheckDimensions(vector []float32, dimensions int) error {
	if len(vector) != dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dimensions)
	}
	return nil
}

// Best returns the highest scoring result. The first one wins a tie.
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return best, true
}
