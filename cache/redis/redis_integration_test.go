//go:build integration
// +build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"semantic_cache/cache"
)

func startRedisStack(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis/redis-stack-server:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return container, fmt.Sprintf("%s:%s", host, port.Port())
}

func TestIntegration_RedisStore(t *testing.T) {
	ctx := context.Background()
	container, addr := startRedisStack(t, ctx)
	defer container.Terminate(ctx)

	s, err := New(ctx, Config{Addr: addr, Dimensions: 2})
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
	require.Error(t, s.Insert(ctx, cache.Record{ID: "r1", Vector: []float32{1, 0}, Answer: "other"}))

	// the rejected duplicate left the original hash untouched
	fields, err := s.rdb.HGetAll(ctx, s.prefix+"r1").Result()
	require.NoError(t, err)
	assert.Equal(t, "a", fields["answer"])
	assert.Equal(t, "q", fields["question"])

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, got.Vector)
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	results, err = s.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].Record.ID)
	assert.Equal(t, "a", results[0].Record.Answer)
	assert.InDelta(t, 0.8, results[0].Score, 1e-4)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a partial miss deletes nothing
	assert.ErrorIs(t, s.Delete(ctx, "r1", "missing"), cache.ErrNotFound)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Purge(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIntegration_RedisInsertLeavesNoPartialRecord(t *testing.T) {
	ctx := context.Background()
	container, addr := startRedisStack(t, ctx)
	defer container.Terminate(ctx)

	s, err := New(ctx, Config{Addr: addr, Dimensions: 2})
	require.NoError(t, err)
	defer s.Close()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, s.Insert(cancelled, cache.Record{ID: "r1", Vector: []float32{1, 0}, Answer: "a"}))

	exists, err := s.rdb.Exists(ctx, s.prefix+"r1").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	// the id is still free
	require.NoError(t, s.Insert(ctx, cache.Record{ID: "r1", Vector: []float32{1, 0}, Answer: "a", CreatedAt: time.Now()}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
