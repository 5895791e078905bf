//go:build integration
// +build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"semantic_cache/cache"
)

func startPostgres(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "semcache",
				"POSTGRES_PASSWORD": "semcache",
				"POSTGRES_DB":       "semcache",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://semcache:semcache@%s:%s/semcache?sslmode=disable", host, port.Port())
	return container, dsn
}

func TestIntegration_PostgresStore(t *testing.T) {
	ctx := context.Background()
	container, dsn := startPostgres(t, ctx)
	defer container.Terminate(ctx)

	s, err := New(ctx, Config{DSN: dsn, Dimensions: 2})
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Insert(ctx, cache.Record{
		ID:        "r1",
		Vector:    []float32{0.6, 0.8},
		Question:  "q",
		Answer:    "a",
		CreatedAt: time.Now(),
	}))
	require.Error(t, s.Insert(ctx, cache.Record{ID: "r1", Vector: []float32{1, 0}, Answer: "other", CreatedAt: time.Now()}))

	results, err = s.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].Record.ID)
	assert.Equal(t, "a", results[0].Record.Answer)
	assert.InDelta(t, 0.8, results[0].Score, 1e-4)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, got.Vector, 1e-6)

	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, cache.ErrNotFound))

	// a partial miss deletes nothing
	assert.ErrorIs(t, s.Delete(ctx, "r1", "missing"), cache.ErrNotFound)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Purge(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
