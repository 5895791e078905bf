package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDimensions(t *testing.T) {
	require.NoError(t, CheckDimensions([]float32{1, 0, 0}, 3))

	err := CheckDimensions([]float32{1, 0}, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Contains(t, err.Error(), "got 2, want 3")
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	results := []Result{
		{Record: Record{ID: "a"}, Score: 0.5},
		{Record: Record{ID: "b"}, Score: 0.9},
		{Record: Record{ID: "c"}, Score: 0.9},
		{Record: Record{ID: "d"}, Score: 0.1},
	}
	best, ok := Best(results)
	require.True(t, ok)
	assert.Equal(t, "b", best.Record.ID)
	assert.Equal(t, float32(0.9), best.Score)
}
