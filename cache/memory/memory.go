package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"semantic_cache/cache"
)

// Store implements cache.Store with an exact, in-process cosine scan.
// Vectors are expected to be L2-normalized, so the score is a dot product.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	records    []cache.Record
	index      map[string]int
}

// New creates an empty store for vectors of the given dimensionality
func New(dimensions int) *Store {
	return &Store{
		dimensions: dimensions,
		index:      make(map[string]int),
	}
}

// Query implements cache.Store
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]cache.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cache.CheckDimensions(vector, s.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 1
	}

	s.mu.RLock()
	results := make([]cache.Result, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, cache.Result{Record: r.Clone(), Score: dot(vector, r.Vector)})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Insert implements cache.Store. Ids must be unique; an existing id is
// never overwritten.
func (s *Store) Insert(ctx context.Context, record cache.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cache.CheckDimensions(record.Vector, s.dimensions); err != nil {
		return err
	}

	record = record.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[record.ID]; ok {
		return fmt.Errorf("record %s already exists", record.ID)
	}
	s.index[record.ID] = len(s.records)
	s.records = append(s.records, record)
	return nil
}

// Count implements cache.Maintainer
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Delete implements cache.Maintainer
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return fmt.Errorf("%w: %s", cache.ErrNotFound, id)
		}
		drop[id] = struct{}{}
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	s.records = kept
	s.reindex()
	return nil
}

// Purge implements cache.Maintainer
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]int)
	return nil
}

// Records returns a copy of every stored record in insertion order
func (s *Store) Records() []cache.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cache.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Get implements cache.Maintainer
func (s *Store) Get(ctx context.Context, id string) (*cache.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, id)
	}
	r := s.records[i].Clone()
	return &r, nil
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
