package rpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const echoService = "test.Echo"

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text string `json:"text"`
}

var errEmpty = errors.New("empty text")

type echoServer struct{}

func (echoServer) Echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Text == "" {
		return nil, Status(errEmpty, map[error]codes.Code{errEmpty: codes.InvalidArgument})
	}
	return &echoResponse{Text: req.Text}, nil
}

type echoHandler interface {
	Echo(ctx context.Context, req *echoRequest) (*echoResponse, error)
}

var echoDesc = grpc.ServiceDesc{
	ServiceName: echoService,
	HandlerType: (*echoHandler)(nil),
	Methods:     []grpc.MethodDesc{Unary(echoService, "Echo", echoServer.Echo)},
}

func start(t *testing.T, logger *zap.Logger) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewServer(logger)
	gs.RegisterService(&echoDesc, echoServer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, gs, lis) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUnaryRoundTripThroughInterceptor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	conn := start(t, zap.New(core))

	out := new(echoResponse)
	require.NoError(t, conn.Invoke(context.Background(), FullMethod(echoService, "Echo"), &echoRequest{Text: "hi"}, out))
	assert.Equal(t, "hi", out.Text)

	err := conn.Invoke(context.Background(), FullMethod(echoService, "Echo"), &echoRequest{}, new(echoResponse))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.ErrorIs(t, FromStatus(err, map[codes.Code]error{codes.InvalidArgument: errEmpty}), errEmpty)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "rpc served", entries[0].Message)
	assert.Equal(t, "rpc failed", entries[1].Message)
	assert.Equal(t, "/test.Echo/Echo", entries[1].ContextMap()["method"])
}

func TestStatusMapping(t *testing.T) {
	assert.Nil(t, Status(nil, nil))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(Status(context.DeadlineExceeded, nil)))
	assert.Equal(t, codes.Canceled, status.Code(Status(context.Canceled, nil)))
	assert.Equal(t, codes.Unavailable, status.Code(Status(errors.New("boom"), nil)))

	already := status.Error(codes.NotFound, "gone")
	assert.Equal(t, already, Status(already, nil))
}

func TestFromStatusRestoresContextErrors(t *testing.T) {
	err := FromStatus(status.Error(codes.DeadlineExceeded, "slow"), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	plain := errors.New("plain")
	assert.Equal(t, plain, FromStatus(plain, nil))
}
