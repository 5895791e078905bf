package engine

import (
	"errors"
	"fmt"
)

// Stage names the collaborator call that failed
type Stage string

const (
	StageEmbedding   Stage = "embedding"
	StageStoreQuery  Stage = "store_query"
	StageCompletion  Stage = "completion"
	StageStoreInsert Stage = "store_insert"
)

var (
	// ErrInvalidInput is the only error Answer returns. The question was
	// empty after trimming and no provider was called.
	ErrInvalidInput = errors.New("invalid input: question is empty")

	ErrEmbedding   = errors.New("embedding failed")
	ErrStoreQuery  = errors.New("vector store query failed")
	ErrCompletion  = errors.New("generation failed")
	ErrStoreInsert = errors.New("vector store insert failed")
)

// StageError records a collaborator failure. It matches both the stage
// sentinel and the underlying error with errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Stage.sentinel(), e.Err}
}

func (s Stage) sentinel() error {
	switch s {
	case StageEmbedding:
		return ErrEmbedding
	case StageStoreQuery:
		return ErrStoreQuery
	case StageCompletion:
		return ErrCompletion
	case StageStoreInsert:
		return ErrStoreInsert
	}
	return nil
}
