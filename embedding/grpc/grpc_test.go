package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"semantic_cache/embedding"
	"semantic_cache/embedding/hashing"
	"semantic_cache/rpc"
)

func startServer(t *testing.T, svc embedding.Service) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(svc).Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := rpc.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	client := NewClientFromConn(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	local := hashing.New(32)
	client := startServer(t, local)

	remote, err := client.Get(ctx, "What is the capital of France?")
	require.NoError(t, err)
	want, err := local.Get(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, want, remote)
}

func TestInputErrorsBecomeInvalidArgument(t *testing.T) {
	client := startServer(t, hashing.New(32))

	_, err := client.Get(context.Background(), "   ")
	require.Error(t, err)
	st, ok := status.FromError(errors.Unwrap(err))
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}
