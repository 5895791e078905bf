package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"semantic_cache/cache"
)

const (
	DefaultIndex = "idx:semcache"

	fieldVector = "vector"
	fieldScore  = "vector_score"
)

// Config holds the Redis Stack connection settings
type Config struct {
	Addr       string
	Password   string
	DB         int
	Index      string
	Dimensions int
}

// Store implements cache.Store on Redis Stack (RediSearch HNSW index over
// hashes). RediSearch reports cosine distance; Query converts it to
// similarity as 1 - distance.
type Store struct {
	rdb        *redis.Client
	index      string
	prefix     string
	dimensions int
}

// New connects and creates the search index when missing
func New(ctx context.Context, cfg Config) (*Store, error) {
	index := cfg.Index
	if index == "" {
		index = DefaultIndex
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// FT.SEARCH replies are parsed from RESP2
		Protocol: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("fail to ping redis: %w", err)
	}

	s := &Store{
		rdb:        rdb,
		index:      index,
		prefix:     index + ":",
		dimensions: cfg.Dimensions,
	}
	if err := s.createIndex(ctx); err != nil {
		rdb.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createIndex(ctx context.Context) error {
	err := s.rdb.FTCreate(ctx, s.index,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{s.prefix},
		},
		&redis.FieldSchema{
			FieldName: fieldVector,
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				HNSWOptions: &redis.FTHNSWOptions{
					Type:           "FLOAT32",
					Dim:            s.dimensions,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("fail to create index %s: %w", s.index, err)
	}
	return nil
}

// Query implements cache.Store
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]cache.Result, error) {
	if err := cache.CheckDimensions(vector, s.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 1
	}
	query := fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", topK, fieldVector, fieldScore)
	res, err := s.rdb.FTSearchWithArgs(ctx, s.index, query, &redis.FTSearchOptions{
		Return: []redis.FTSearchReturn{
			{FieldName: "question"},
			{FieldName: "answer"},
			{FieldName: "model"},
			{FieldName: "created_at"},
			{FieldName: fieldScore},
		},
		SortBy:         []redis.FTSearchSortBy{{FieldName: fieldScore, Asc: true}},
		Params:         map[string]interface{}{"vec": encodeVector(vector)},
		DialectVersion: 2,
		LimitOffset:    0,
		Limit:          topK,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to search redis: %w", err)
	}

	results := make([]cache.Result, 0, len(res.Docs))
	for _, doc := range res.Docs {
		distance, err := strconv.ParseFloat(doc.Fields[fieldScore], 32)
		if err != nil {
			return nil, fmt.Errorf("fail to parse score of %s: %w", doc.ID, err)
		}
		results = append(results, cache.Result{
			Record: recordFromFields(strings.TrimPrefix(doc.ID, s.prefix), doc.Fields),
			Score:  float32(1 - distance),
		})
	}
	return results, nil
}

// insertScript writes the whole hash only when the key is absent, so a
// failed or duplicate insert never leaves a partial record behind.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// deleteScript removes the keys only when every one of them exists and
// returns the number of missing keys otherwise.
var deleteScript = redis.NewScript(`
local missing = 0
for _, key in ipairs(KEYS) do
	if redis.call('EXISTS', key) == 0 then
		missing = missing + 1
	end
end
if missing > 0 then
	return -missing
end
return redis.call('DEL', unpack(KEYS))
`)

// Insert implements cache.Store. An existing id is never overwritten.
func (s *Store) Insert(ctx context.Context, record cache.Record) error {
	if err := cache.CheckDimensions(record.Vector, s.dimensions); err != nil {
		return err
	}
	created, err := insertScript.Run(ctx, s.rdb, []string{s.prefix + record.ID},
		fieldVector, encodeVector(record.Vector),
		"question", record.Question,
		"answer", record.Answer,
		"model", record.Model,
		"created_at", record.CreatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("fail to store redis record: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("record %s already exists", record.ID)
	}
	return nil
}

// Count implements cache.Maintainer
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.rdb.FTSearchWithArgs(ctx, s.index, "*", &redis.FTSearchOptions{
		NoContent:      true,
		DialectVersion: 2,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("fail to count redis records: %w", err)
	}
	return res.Total, nil
}

// Delete implements cache.Maintainer. Nothing is removed unless every id
// exists.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.prefix+id)
	}
	n, err := deleteScript.Run(ctx, s.rdb, keys).Int()
	if err != nil {
		return fmt.Errorf("fail to delete redis records: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("%w: %d of %d ids", cache.ErrNotFound, -n, len(ids))
	}
	return nil
}

// Get implements cache.Maintainer
func (s *Store) Get(ctx context.Context, id string) (*cache.Record, error) {
	fields, err := s.rdb.HGetAll(ctx, s.prefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to get redis record %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, id)
	}
	vector, err := decodeVector([]byte(fields[fieldVector]))
	if err != nil {
		return nil, fmt.Errorf("fail to decode vector of %s: %w", id, err)
	}
	r := recordFromFields(id, fields)
	r.Vector = vector
	return &r, nil
}

// Purge implements cache.Maintainer by dropping the index with its documents
func (s *Store) Purge(ctx context.Context) error {
	err := s.rdb.FTDropIndexWithArgs(ctx, s.index, &redis.FTDropIndexOptions{DeleteDocs: true}).Err()
	if err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("fail to drop index %s: %w", s.index, err)
	}
	return s.createIndex(ctx)
}

// Close closes the client
func (s *Store) Close() error {
	return s.rdb.Close()
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

func recordFromFields(id string, fields map[string]string) cache.Record {
	r := cache.Record{
		ID:       id,
		Question: fields["question"],
		Answer:   fields["answer"],
		Model:    fields["model"],
	}
	if ms, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		r.CreatedAt = time.UnixMilli(ms)
	}
	return r
}

// encodeVector packs a vector as little-endian FLOAT32, the layout
// RediSearch expects for vector fields and query params.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.New("vector blob length is not a multiple of 4")
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
