package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"semantic_cache/cache"
	"semantic_cache/rpc"
)

// Client implements cache.Store and cache.Maintainer against a remote
// cache service.
type Client struct {
	conn *grpc.ClientConn
}

func NewClient(address string) (*Client, error) {
	conn, err := rpc.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cache service: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClientFromConn wraps an existing connection dialed with the rpc codec
func NewClientFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if err := c.conn.Invoke(ctx, rpc.FullMethod(serviceName, method), in, out); err != nil {
		return rpc.FromStatus(err, sentinels)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]cache.Result, error) {
	resp := new(QueryResponse)
	if err := c.invoke(ctx, "Query", &QueryRequest{Vector: vector, TopK: int32(topK)}, resp); err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	results := make([]cache.Result, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		results = append(results, cache.Result{Record: fromWire(h.Record), Score: h.Score})
	}
	return results, nil
}

func (c *Client) Insert(ctx context.Context, record cache.Record) error {
	if err := c.invoke(ctx, "Insert", &InsertRequest{Record: toWire(record)}, new(InsertResponse)); err != nil {
		return fmt.Errorf("failed to save cache: %w", err)
	}
	return nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	resp := new(CountResponse)
	if err := c.invoke(ctx, "Count", &CountRequest{}, resp); err != nil {
		return 0, fmt.Errorf("failed to count cache: %w", err)
	}
	return int(resp.Count), nil
}

func (c *Client) Get(ctx context.Context, id string) (*cache.Record, error) {
	resp := new(GetResponse)
	if err := c.invoke(ctx, "Get", &GetRequest{ID: id}, resp); err != nil {
		return nil, fmt.Errorf("failed to get cache record: %w", err)
	}
	r := fromWire(resp.Record)
	return &r, nil
}

func (c *Client) Delete(ctx context.Context, ids ...string) error {
	if err := c.invoke(ctx, "Delete", &DeleteRequest{IDs: ids}, new(DeleteResponse)); err != nil {
		return fmt.Errorf("failed to delete cache records: %w", err)
	}
	return nil
}

func (c *Client) Purge(ctx context.Context) error {
	if err := c.invoke(ctx, "Purge", &PurgeRequest{}, new(PurgeResponse)); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

var (
	_ cache.Store      = (*Client)(nil)
	_ cache.Maintainer = (*Client)(nil)
)
