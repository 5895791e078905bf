package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"semantic_cache/rpc"
)

type Client struct {
	conn *grpc.ClientConn
}

func NewClient(address string) (*Client, error) {
	conn, err := rpc.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to embedding service: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClientFromConn wraps an existing connection dialed with the rpc codec
func NewClientFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Get implements embedding.Service
func (c *Client) Get(ctx context.Context, text string) ([]float32, error) {
	resp := new(EmbeddingResponse)
	err := c.conn.Invoke(ctx, rpc.FullMethod(serviceName, "GetEmbedding"), &EmbeddingRequest{Text: text}, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", rpc.FromStatus(err, nil))
	}
	return resp.Embedding, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
