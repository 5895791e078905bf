package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"semantic_cache/embedding"
	"semantic_cache/rpc"
)

const serviceName = "semcache.EmbeddingService"

type EmbeddingRequest struct {
	Text string `json:"text"`
}

type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

var errorCodes = map[error]codes.Code{
	embedding.ErrEmptyText:   codes.InvalidArgument,
	embedding.ErrTextTooLong: codes.InvalidArgument,
}

type embeddingServer interface {
	GetEmbedding(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*embeddingServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(serviceName, "GetEmbedding", func(srv *Server, ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
			return srv.GetEmbedding(ctx, req)
		}),
	},
	Metadata: "embedding.json",
}
