package qdrant

import (
	"context"
	"fmt"
	"time"

	"semantic_cache/cache"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// Config holds the connection settings for a Qdrant store
type Config struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string
	Dimensions     int
}

// Store implements cache.Store using Qdrant as the backend.
// The collection uses cosine distance, so Qdrant scores are already
// cosine similarity.
type Store struct {
	client         *qdrant.Client
	collectionName string
	dimensions     int
	logger         *zap.Logger
}

// New connects to Qdrant and creates the collection when missing
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	qclient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create qdrant client: %w", err)
	}

	s := &Store{
		client:         qclient,
		collectionName: cfg.CollectionName,
		dimensions:     cfg.Dimensions,
		logger:         logger,
	}
	if err := s.createCollection(ctx); err != nil {
		qclient.Close()
		return nil, fmt.Errorf("fail to create qdrant collection: %w", err)
	}
	return s, nil
}

// Query implements cache.Store
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]cache.Result, error) {
	if err := cache.CheckDimensions(vector, s.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 1
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to search qdrant: %w", err)
	}

	results := make([]cache.Result, 0, len(points))
	for _, p := range points {
		results = append(results, cache.Result{
			Record: recordFromPayload(p.GetId().GetUuid(), p.GetPayload()),
			Score:  p.GetScore(),
		})
	}
	return results, nil
}

// Insert implements cache.Store
func (s *Store) Insert(ctx context.Context, record cache.Record) error {
	if err := cache.CheckDimensions(record.Vector, s.dimensions); err != nil {
		return err
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(record.ID),
				Vectors: qdrant.NewVectorsDense(record.Vector),
				Payload: qdrant.NewValueMap(map[string]any{
					"question":  record.Question,
					"answer":    record.Answer,
					"model":     record.Model,
					"timestamp": record.CreatedAt.UnixMilli(),
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("fail to store qdrant point: %w", err)
	}
	s.logger.Debug("stored cache record", zap.String("id", record.ID))
	return nil
}

// Count implements cache.Maintainer
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collectionName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("fail to count qdrant points: %w", err)
	}
	return int(n), nil
}

// Delete implements cache.Maintainer. Unknown ids are detected before
// anything is deleted.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[string]struct{}, len(ids))
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		if _, ok := unique[id]; ok {
			continue
		}
		unique[id] = struct{}{}
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	found, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collectionName,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return fmt.Errorf("fail to look up qdrant points: %w", err)
	}
	if missing := len(pointIDs) - len(found); missing > 0 {
		return fmt.Errorf("%w: %d of %d ids", cache.ErrNotFound, missing, len(pointIDs))
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("fail to delete qdrant points: %w", err)
	}
	return nil
}

// Get implements cache.Maintainer
func (s *Store) Get(ctx context.Context, id string) (*cache.Record, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collectionName,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to get qdrant point %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, id)
	}
	r := recordFromPayload(id, points[0].GetPayload())
	r.Vector = denseVector(points[0].GetVectors().GetVector())
	return &r, nil
}

// Purge implements cache.Maintainer by dropping and recreating the collection
func (s *Store) Purge(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collectionName); err != nil {
		return fmt.Errorf("fail to drop collection %s: %w", s.collectionName, err)
	}
	return s.createCollection(ctx)
}

// Close releases the underlying gRPC connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) createCollection(ctx context.Context) error {
	isExist, err := s.client.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("fail to check if collection %s exists: %w", s.collectionName, err)
	}
	if isExist {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("fail to create collection: %w", err)
	}
	s.logger.Info("created qdrant collection", zap.String("collection", s.collectionName))
	return nil
}

func recordFromPayload(id string, payload map[string]*qdrant.Value) cache.Record {
	return cache.Record{
		ID:        id,
		Question:  payload["question"].GetStringValue(),
		Answer:    payload["answer"].GetStringValue(),
		Model:     payload["model"].GetStringValue(),
		CreatedAt: time.UnixMilli(payload["timestamp"].GetIntegerValue()),
	}
}

func denseVector(v *qdrant.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData()
}
