package grpc

import (
	"context"

	"google.golang.org/grpc"

	"semantic_cache/embedding"
	"semantic_cache/rpc"
)

type Server struct {
	embeddingService embedding.Service
}

func NewServer(embeddingService embedding.Service) *Server {
	return &Server{
		embeddingService: embeddingService,
	}
}

// Register exposes the server on s
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) GetEmbedding(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	vector, err := s.embeddingService.Get(ctx, req.Text)
	if err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	return &EmbeddingResponse{Embedding: vector}, nil
}
