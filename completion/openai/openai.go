package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"semantic_cache/completion"
)

const DefaultModel = "gpt-4o-mini"

type OpenaiCompletionService struct {
	client openai.Client
	model  string
}

// New creates a chat completion service. baseURL may point at any
// OpenAI-compatible endpoint; empty uses the public API. SDK-level
// retries are disabled in favour of completion.WithRetry.
func New(apiKey string, model string, baseURL string) *OpenaiCompletionService {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenaiCompletionService{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete implements completion.Service
func (s *OpenaiCompletionService) Complete(ctx context.Context, req *completion.CompletionRequest) (*completion.CompletionResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, completion.ErrEmptyQuestion
	}
	model := s.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Question),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isRateLimitError(err) {
			return nil, fmt.Errorf("%w: %v", completion.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("fail to call upstream api: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, completion.ErrEmptyAnswer
	}

	return &completion.CompletionResponse{
		Content:    resp.Choices[0].Message.Content,
		TokenUsage: int(resp.Usage.TotalTokens),
		Model:      resp.Model,
	}, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

var _ completion.Service = (*OpenaiCompletionService)(nil)
