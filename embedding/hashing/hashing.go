// Package hashing provides a local embedder that needs no model or network.
//
// Text is lowercased and split into alphanumeric tokens. Every unigram and
// adjacent bigram is hashed with FNV-1a into one of D buckets with a sign
// taken from a second hash bit, and the bucket vector is L2-normalized.
// Questions that share most of their words land close together, which is
// enough for a development semantic cache.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"semantic_cache/embedding"
)

const (
	DefaultDimensions = 384
	DefaultMaxRunes   = 8192

	bigramWeight = 0.5
)

// Service implements embedding.Service
type Service struct {
	dimensions int
	maxRunes   int
}

// New creates a hashing embedder producing vectors of the given dimensionality
func New(dimensions int) *Service {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Service{dimensions: dimensions, maxRunes: DefaultMaxRunes}
}

// Dimensions returns the vector length
func (s *Service) Dimensions() int {
	return s.dimensions
}

// Get implements embedding.Service
func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len([]rune(text)) > s.maxRunes {
		return nil, fmt.Errorf("%w: more than %d characters", embedding.ErrTextTooLong, s.maxRunes)
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, embedding.ErrEmptyText
	}

	v := make([]float32, s.dimensions)
	for i, tok := range tokens {
		s.add(v, tok, 1)
		if i > 0 {
			s.add(v, tokens[i-1]+" "+tok, bigramWeight)
		}
	}
	if err := embedding.Normalize(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(s.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[bucket] += weight
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
