package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"semantic_cache/completion"
	"semantic_cache/rpc"
)

type Client struct {
	conn *grpc.ClientConn
}

func NewClient(address string) (*Client, error) {
	conn, err := rpc.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to completion service: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClientFromConn wraps an existing connection dialed with the rpc codec
func NewClientFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Complete implements completion.Service
func (c *Client) Complete(ctx context.Context, req *completion.CompletionRequest) (*completion.CompletionResponse, error) {
	// Convert completion.CompletionRequest to the wire request
	in := &CompletionRequest{
		Model:       req.Model,
		Question:    req.Question,
		Temperature: req.Temperature,
		MaxTokens:   int32(req.MaxTokens),
	}

	out := new(CompletionResponse)
	if err := c.conn.Invoke(ctx, rpc.FullMethod(serviceName, "Complete"), in, out); err != nil {
		return nil, fmt.Errorf("failed to complete: %w", rpc.FromStatus(err, sentinels))
	}
	return &completion.CompletionResponse{
		Content:    out.Content,
		TokenUsage: int(out.TokenUsage),
		Model:      out.Model,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
