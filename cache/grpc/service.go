package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"semantic_cache/cache"
	"semantic_cache/rpc"
)

const serviceName = "semcache.CacheService"

type Record struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type QueryRequest struct {
	Vector []float32 `json:"vector"`
	TopK   int32     `json:"top_k"`
}

type Hit struct {
	Record Record  `json:"record"`
	Score  float32 `json:"score"`
}

type QueryResponse struct {
	Hits []Hit `json:"hits"`
}

type InsertRequest struct {
	Record Record `json:"record"`
}

type InsertResponse struct{}

type CountRequest struct{}

type CountResponse struct {
	Count int64 `json:"count"`
}

type GetRequest struct {
	ID string `json:"id"`
}

type GetResponse struct {
	Record Record `json:"record"`
}

type DeleteRequest struct {
	IDs []string `json:"ids"`
}

type DeleteResponse struct{}

type PurgeRequest struct{}

type PurgeResponse struct{}

var errorCodes = map[error]codes.Code{
	cache.ErrDimensionMismatch: codes.InvalidArgument,
	cache.ErrNotFound:          codes.NotFound,
}

var sentinels = map[codes.Code]error{
	codes.InvalidArgument: cache.ErrDimensionMismatch,
	codes.NotFound:        cache.ErrNotFound,
}

type cacheServer interface {
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
	Insert(ctx context.Context, req *InsertRequest) (*InsertResponse, error)
	Count(ctx context.Context, req *CountRequest) (*CountResponse, error)
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error)
	Purge(ctx context.Context, req *PurgeRequest) (*PurgeResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*cacheServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(serviceName, "Query", (*Server).Query),
		rpc.Unary(serviceName, "Insert", (*Server).Insert),
		rpc.Unary(serviceName, "Count", (*Server).Count),
		rpc.Unary(serviceName, "Get", (*Server).Get),
		rpc.Unary(serviceName, "Delete", (*Server).Delete),
		rpc.Unary(serviceName, "Purge", (*Server).Purge),
	},
	Metadata: "cache.json",
}

func toWire(r cache.Record) Record {
	return Record{
		ID:        r.ID,
		Vector:    r.Vector,
		Question:  r.Question,
		Answer:    r.Answer,
		Model:     r.Model,
		CreatedAt: r.CreatedAt,
	}
}

func fromWire(r Record) cache.Record {
	return cache.Record{
		ID:        r.ID,
		Vector:    r.Vector,
		Question:  r.Question,
		Answer:    r.Answer,
		Model:     r.Model,
		CreatedAt: r.CreatedAt,
	}
}
