//go:build integration
// +build integration

package qdrant

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"semantic_cache/cache"
)

func startQdrant(t *testing.T, ctx context.Context) (testcontainers.Container, string, int) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "qdrant/qdrant:v1.16.2",
			ExposedPorts: []string{"6334/tcp"},
			WaitingFor:   wait.ForListeningPort("6334/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6334")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)
	return container, host, p
}

func TestIntegration_QdrantStore(t *testing.T) {
	ctx := context.Background()
	container, host, port := startQdrant(t, ctx)
	defer container.Terminate(ctx)

	s, err := New(ctx, Config{
		Host:           host,
		Port:           port,
		CollectionName: "semcache_test",
		Dimensions:     2,
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	id := uuid.NewString()
	require.NoError(t, s.Insert(ctx, cache.Record{
		ID:        id,
		Vector:    []float32{0.6, 0.8},
		Question:  "q",
		Answer:    "a",
		CreatedAt: time.Now(),
	}))

	results, err = s.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Record.ID)
	assert.Equal(t, "a", results[0].Record.Answer)
	assert.InDelta(t, 0.8, results[0].Score, 1e-4)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "q", got.Question)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, got.Vector, 1e-6)
	_, err = s.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, cache.ErrNotFound)

	// a partial miss deletes nothing
	assert.ErrorIs(t, s.Delete(ctx, id, uuid.NewString()), cache.ErrNotFound)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Purge(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
