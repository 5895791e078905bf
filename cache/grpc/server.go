package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"semantic_cache/cache"
	"semantic_cache/rpc"
)

// Server exposes a cache.Store over gRPC. Maintenance calls are answered
// only when the store also implements cache.Maintainer.
type Server struct {
	store cache.Store
}

func NewServer(store cache.Store) *Server {
	return &Server{
		store: store,
	}
}

// Register exposes the server on s
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	results, err := s.store.Query(ctx, req.Vector, int(req.TopK))
	if err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	resp := &QueryResponse{Hits: make([]Hit, 0, len(results))}
	for _, r := range results {
		resp.Hits = append(resp.Hits, Hit{Record: toWire(r.Record), Score: r.Score})
	}
	return resp, nil
}

func (s *Server) Insert(ctx context.Context, req *InsertRequest) (*InsertResponse, error) {
	if err := s.store.Insert(ctx, fromWire(req.Record)); err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	return &InsertResponse{}, nil
}

func (s *Server) Count(ctx context.Context, _ *CountRequest) (*CountResponse, error) {
	m, err := s.maintainer()
	if err != nil {
		return nil, err
	}
	n, err := m.Count(ctx)
	if err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	return &CountResponse{Count: int64(n)}, nil
}

func (s *Server) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	m, err := s.maintainer()
	if err != nil {
		return nil, err
	}
	r, err := m.Get(ctx, req.ID)
	if err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	return &GetResponse{Record: toWire(*r)}, nil
}

func (s *Server) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	m, err := s.maintainer()
	if err != nil {
		return nil, err
	}
	if err := m.Delete(ctx, req.IDs...); err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	return &DeleteResponse{}, nil
}

func (s *Server) Purge(ctx context.Context, _ *PurgeRequest) (*PurgeResponse, error) {
	m, err := s.maintainer()
	if err != nil {
		return nil, err
	}
	if err := m.Purge(ctx); err != nil {
		return nil, rpc.Status(err, errorCodes)
	}
	return &PurgeResponse{}, nil
}

func (s *Server) maintainer() (cache.Maintainer, error) {
	m, ok := s.store.(cache.Maintainer)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "store does not support maintenance")
	}
	return m, nil
}
