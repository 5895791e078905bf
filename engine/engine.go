// Package engine decides whether a question can be answered from the
// semantic cache or must be sent to the generator.
//
// Scores are cosine similarity in [-1, 1] as reported by cache.Store. A
// candidate is a hit only when its score is strictly greater than the
// configured threshold.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"semantic_cache/cache"
	"semantic_cache/completion"
	"semantic_cache/embedding"
)

// Source tells where an answer came from
type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Latency is the coarse latency class of an answer
type Latency string

const (
	LatencyFast     Latency = "fast"
	LatencySlow     Latency = "slow"
	LatencyDegraded Latency = "degraded"
)

const (
	DefaultThreshold         = 0.90
	DefaultTopK              = 1
	DefaultEmbedTimeout      = 5 * time.Second
	DefaultQueryTimeout      = 3 * time.Second
	DefaultInsertTimeout     = 3 * time.Second
	DefaultCompletionTimeout = 30 * time.Second
	DefaultFallbackAnswer    = "The service is temporarily unavailable. Please try again later."
)

type Config struct {
	// Threshold is compared with a strict greater-than
	Threshold  float32
	Dimensions int
	TopK       int

	EmbedTimeout      time.Duration
	QueryTimeout      time.Duration
	InsertTimeout     time.Duration
	CompletionTimeout time.Duration

	// Model is forwarded to the generator; empty keeps its default
	Model          string
	FallbackAnswer string
}

func DefaultConfig(dimensions int) Config {
	return Config{
		Threshold:         DefaultThreshold,
		Dimensions:        dimensions,
		TopK:              DefaultTopK,
		EmbedTimeout:      DefaultEmbedTimeout,
		QueryTimeout:      DefaultQueryTimeout,
		InsertTimeout:     DefaultInsertTimeout,
		CompletionTimeout: DefaultCompletionTimeout,
		FallbackAnswer:    DefaultFallbackAnswer,
	}
}

// Result is the outcome of one Answer call
type Result struct {
	Answer  string
	Source  Source
	Latency Latency
	// Score of the best candidate, zero when the store had none
	Score float32
	// RecordID is the matched record on a hit and the new record on a
	// stored miss
	RecordID string
	// Cause is the *StageError behind a fallback, or the insert failure
	// behind a generated answer that was not cached
	Cause   error
	Elapsed time.Duration
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the record id source. It must be safe for
// concurrent use and never return the same id twice.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// Engine implements the cache hit/miss protocol. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg       Config
	embedder  embedding.Service
	store     cache.Store
	completer completion.Service
	logger    *zap.Logger
	metrics   *Metrics
	now       func() time.Time
	newID     func() string
}

// New creates an engine. Zero timeouts, TopK and FallbackAnswer take
// their defaults.
func New(cfg Config, embedder embedding.Service, store cache.Store, completer completion.Service, opts ...Option) (*Engine, error) {
	if embedder == nil || store == nil || completer == nil {
		return nil, errors.New("engine requires an embedder, a store and a completer")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %d", cfg.Dimensions)
	}
	if cfg.Threshold < -1 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("invalid similarity threshold: %v", cfg.Threshold)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = DefaultInsertTimeout
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = DefaultCompletionTimeout
	}
	if cfg.FallbackAnswer == "" {
		cfg.FallbackAnswer = DefaultFallbackAnswer
	}

	e := &Engine{
		cfg:       cfg,
		embedder:  embedder,
		store:     store,
		completer: completer,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     newRecordID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Answer returns a cached answer for a semantically equivalent question,
// or generates, stores and returns a new one. Collaborator failures never
// surface as errors: they produce a fallback result whose Cause names the
// failing stage. The only error returned is ErrInvalidInput.
func (e *Engine) Answer(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	start := e.now()

	vector, err := call(ctx, e, StageEmbedding, e.cfg.EmbedTimeout, func(ctx context.Context) ([]float32, error) {
		v, err := e.embedder.Get(ctx, question)
		if err != nil {
			return nil, err
		}
		// a mismatched vector would make every score meaningless
		if err := cache.CheckDimensions(v, e.cfg.Dimensions); err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return e.fallback(err, start), nil
	}

	results, err := call(ctx, e, StageStoreQuery, e.cfg.QueryTimeout, func(ctx context.Context) ([]cache.Result, error) {
		return e.store.Query(ctx, vector, e.cfg.TopK)
	})
	if err != nil {
		return e.fallback(err, start), nil
	}

	best, found := cache.Best(results)
	if found {
		e.metrics.recordScore(best.Score)
		if best.Score > e.cfg.Threshold {
			e.logger.Info("cache hit",
				zap.String("record_id", best.Record.ID),
				zap.Float32("score", best.Score))
			return e.finish(&Result{
				Answer:   best.Record.Answer,
				Source:   SourceCache,
				Latency:  LatencyFast,
				Score:    best.Score,
				RecordID: best.Record.ID,
			}, start), nil
		}
	}
	e.logger.Debug("cache miss", zap.Bool("candidate", found), zap.Float32("score", best.Score))

	resp, err := call(ctx, e, StageCompletion, e.cfg.CompletionTimeout, func(ctx context.Context) (*completion.CompletionResponse, error) {
		resp, err := e.completer.Complete(ctx, &completion.CompletionRequest{
			Model:    e.cfg.Model,
			Question: question,
		})
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Content == "" {
			return nil, completion.ErrEmptyAnswer
		}
		return resp, nil
	})
	if err != nil {
		return e.fallback(err, start), nil
	}

	result := &Result{
		Answer:  resp.Content,
		Source:  SourceGenerated,
		Latency: LatencySlow,
		Score:   best.Score,
	}

	record := cache.Record{
		ID:        e.newID(),
		Vector:    vector,
		Question:  question,
		Answer:    resp.Content,
		Model:     resp.Model,
		CreatedAt: e.now(),
	}
	// bounded by InsertTimeout only; a caller that goes away after
	// generation does not drop the record
	insertCtx := context.WithoutCancel(ctx)
	_, err = call(insertCtx, e, StageStoreInsert, e.cfg.InsertTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.store.Insert(ctx, record)
	})
	if err != nil {
		e.logger.Error("fail to store generated answer", zap.String("record_id", record.ID), zap.Error(err))
		result.Cause = err
	} else {
		result.RecordID = record.ID
	}
	return e.finish(result, start), nil
}

func (e *Engine) fallback(cause error, start time.Time) *Result {
	var se *StageError
	stage := Stage("unknown")
	if errors.As(cause, &se) {
		stage = se.Stage
	}
	e.logger.Warn("answering with fallback", zap.String("stage", string(stage)), zap.Error(cause))
	return e.finish(&Result{
		Answer:  e.cfg.FallbackAnswer,
		Source:  SourceFallback,
		Latency: LatencyDegraded,
		Cause:   cause,
	}, start)
}

func (e *Engine) finish(r *Result, start time.Time) *Result {
	r.Elapsed = e.now().Sub(start)
	e.metrics.recordAnswer(r.Source)
	return r
}

// call runs fn once under its own timeout. The result is abandoned when
// the deadline passes even if fn ignores its context, so a stuck
// collaborator cannot block the caller.
func call[T any](ctx context.Context, e *Engine, stage Stage, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	started := time.Now()
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	e.metrics.recordStage(stage, time.Since(started))

	if out.err != nil {
		e.metrics.recordFailure(stage)
		var zero T
		return zero, &StageError{Stage: stage, Err: out.err}
	}
	return out.value, nil
}

// newRecordID returns a UUIDv7: a millisecond timestamp followed by
// random bits, unique across goroutines and processes.
func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
