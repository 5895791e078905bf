package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic_cache/completion"
)

func TestComplete(t *testing.T) {
	s := New(0)
	resp, err := s.Complete(context.Background(), &completion.CompletionRequest{Question: " why is the sky blue? "})
	require.NoError(t, err)
	assert.Equal(t, "Generated answer for: why is the sky blue?", resp.Content)
	assert.Equal(t, ModelName, resp.Model)
	assert.EqualValues(t, 1, s.Calls())
}

func TestCompleteHonoursDeadline(t *testing.T) {
	s := New(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Complete(ctx, &completion.CompletionRequest{Question: "q"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, s.Calls())
}

func TestCompleteRejectsEmptyQuestion(t *testing.T) {
	_, err := New(0).Complete(context.Background(), &completion.CompletionRequest{})
	assert.ErrorIs(t, err, completion.ErrEmptyQuestion)
}
