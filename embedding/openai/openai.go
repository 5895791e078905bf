package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"semantic_cache/embedding"
)

const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
)

// Service implements embedding.Service using the OpenAI embeddings API
type Service struct {
	client     openai.Client
	model      string
	dimensions int
}

type options struct {
	model      string
	dimensions int
	baseURL    string
}

// Option overrides a Service default
type Option func(*options)

// WithModel sets the embedding model
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithDimensions sets the requested vector length
func WithDimensions(dimensions int) Option {
	return func(o *options) {
		if dimensions > 0 {
			o.dimensions = dimensions
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// New creates a new OpenAI embedding service. SDK-level retries are
// disabled; retrying is configured with embedding.WithRetry.
func New(apiKey string, opts ...Option) *Service {
	o := options{model: DefaultModel, dimensions: DefaultDimensions}
	for _, opt := range opts {
		opt(&o)
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	return &Service{
		client:     openai.NewClient(clientOpts...),
		model:      o.model,
		dimensions: o.dimensions,
	}
}

// Get implements embedding.Service
func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedding.ErrEmptyText
	}
	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(s.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Dimensions: openai.Int(int64(s.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to do embedding request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response data")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	// shortened text-embedding-3 vectors are normalized by the API, but
	// compatible endpoints are not obliged to
	if err := embedding.Normalize(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// ModelName returns the embedding model
func (s *Service) ModelName() string {
	return s.model
}

// Dimensions returns the requested vector length
func (s *Service) Dimensions() int {
	return s.dimensions
}

var _ embedding.Service = (*Service)(nil)
