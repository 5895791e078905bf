package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"semantic_cache/embedding"
)

const (
	DefaultModel    = "text-embedding-004"
	DefaultTaskType = "SEMANTIC_SIMILARITY"
)

var ErrAPIKeyNotSet = errors.New("gemini api key not set")

// Service implements embedding.Service with the Gemini embedding API.
// The client is created once and reused for every call.
type Service struct {
	client     *genai.Client
	model      string
	dimensions int
}

// New creates a Gemini embedding service. dimensions <= 0 keeps the model default.
func New(ctx context.Context, apiKey string, model string, dimensions int) (*Service, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create gemini client: %w", err)
	}
	return &Service{client: client, model: model, dimensions: dimensions}, nil
}

// Get implements embedding.Service
func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedding.ErrEmptyText
	}
	config := &genai.EmbedContentConfig{TaskType: DefaultTaskType}
	if s.dimensions > 0 {
		config.OutputDimensionality = genai.Ptr(int32(s.dimensions))
	}
	resp, err := s.client.Models.EmbedContent(
		ctx,
		s.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("fail to embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}

	vector := make([]float32, len(resp.Embeddings[0].Values))
	copy(vector, resp.Embeddings[0].Values)
	// truncated output dimensionality is not normalized by the API
	if err := embedding.Normalize(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// ModelName returns the embedding model
func (s *Service) ModelName() string {
	return s.model
}
