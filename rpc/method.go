package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Unary builds a method descriptor whose handler decodes Req, runs call
// through the server's interceptor chain and returns Resp.
func Unary[S any, Req any, Resp any](service, method string, call func(srv S, ctx context.Context, req *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

// FullMethod returns the wire name of a method
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// Status converts an application error into a gRPC status error. Context
// errors keep their canonical codes; sentinels listed in codeOf map to
// their code; anything else is Unavailable.
func Status(err error, codeOf map[error]codes.Code) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	for sentinel, code := range codeOf {
		if errors.Is(err, sentinel) {
			return status.Error(code, err.Error())
		}
	}
	return status.Error(codes.Unavailable, err.Error())
}

// FromStatus maps a status error back onto the sentinel registered for
// its code, so callers can keep using errors.Is across the wire.
func FromStatus(err error, sentinelOf map[codes.Code]error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return errors.Join(context.DeadlineExceeded, err)
	case codes.Canceled:
		return errors.Join(context.Canceled, err)
	}
	if sentinel, ok := sentinelOf[st.Code()]; ok {
		return errors.Join(sentinel, err)
	}
	return err
}
