package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"semantic_cache/completion"
	"semantic_cache/rpc"
)

const serviceName = "semcache.CompletionService"

type CompletionRequest struct {
	Model       string  `json:"model,omitempty"`
	Question    string  `json:"question"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int32   `json:"max_tokens,omitempty"`
}

type CompletionResponse struct {
	Content    string `json:"content"`
	TokenUsage int32  `json:"token_usage"`
	Model      string `json:"model,omitempty"`
}

var errorCodes = map[error]codes.Code{
	completion.ErrEmptyQuestion: codes.InvalidArgument,
	completion.ErrRateLimited:   codes.ResourceExhausted,
	completion.ErrEmptyAnswer:   codes.Internal,
}

var sentinels = map[codes.Code]error{
	codes.InvalidArgument:   completion.ErrEmptyQuestion,
	codes.ResourceExhausted: completion.ErrRateLimited,
	codes.Internal:          completion.ErrEmptyAnswer,
}

type completionServer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*completionServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(serviceName, "Complete", func(srv *Server, ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
			return srv.Complete(ctx, req)
		}),
	},
	Metadata: "completion.json",
}
