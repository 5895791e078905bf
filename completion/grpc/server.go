package grpc

import (
	"context"

	"google.golang.org/grpc"

	"semantic_cache/completion"
	"semantic_cache/rpc"
)

type Server struct {
	completionService completion.Service
}

func NewServer(completionService completion.Service) *Server {
	return &Server{
		completionService: completionService,
	}
}

// Register exposes the server on s
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	// Convert the wire request to completion.CompletionRequest
	completionReq := &completion.CompletionRequest{
		Model:       req.Model,
		Question:    req.Question,
		Temperature: req.Temperature,
		MaxTokens:   int(req.MaxTokens),
	}

	resp, err := s.completionService.Complete(ctx, completionReq)
	if err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	return &CompletionResponse{
		Content:    resp.Content,
		TokenUsage: int32(resp.TokenUsage),
		Model:      resp.Model,
	}, nil
}
