package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"semantic_cache/completion"
)

const DefaultModel = "gemini-2.5-flash"

var ErrAPIKeyNotSet = errors.New("gemini api key not set")

// Service implements completion.Service with Gemini GenerateContent
type Service struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey string, model string) (*Service, error) {
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
	return &Service{client: client, model: model}, nil
}

// Complete implements completion.Service
func (s *Service) Complete(ctx context.Context, req *completion.CompletionRequest) (*completion.CompletionResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, completion.ErrEmptyQuestion
	}
	model := s.model
	if req.Model != "" {
		model = req.Model
	}

	var config *genai.GenerateContentConfig
	if req.Temperature > 0 || req.MaxTokens > 0 {
		config = &genai.GenerateContentConfig{}
		if req.Temperature > 0 {
			config.Temperature = genai.Ptr(float32(req.Temperature))
		}
		if req.MaxTokens > 0 {
			config.MaxOutputTokens = int32(req.MaxTokens)
		}
	}

	resp, err := s.client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Question}}}},
		config,
	)
	if err != nil {
		if isRateLimitError(err) {
			return nil, fmt.Errorf("%w: %v", completion.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("fail to generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, completion.ErrEmptyAnswer
	}

	out := &completion.CompletionResponse{Content: text, Model: model}
	if resp.UsageMetadata != nil {
		out.TokenUsage = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

func isRateLimitError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}

var _ completion.Service = (*Service)(nil)
