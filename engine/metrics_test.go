package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountAnswersAndFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	f := newFixture(t, testConfig(), WithMetrics(m))
	f.completer.On("Complete", mock.Anything, mock.Anything).Return(answering("Paris."), nil).Once()

	ctx := context.Background()
	_, err = f.engine.Answer(ctx, "What is the capital of France?")
	require.NoError(t, err)
	_, err = f.engine.Answer(ctx, "capital of France?")
	require.NoError(t, err)

	f.store.queryErr = errors.New("unreachable")
	_, err = f.engine.Answer(ctx, "capital of France?")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues(string(SourceGenerated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues(string(SourceCache))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues(string(SourceFallback))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(string(StageStoreQuery))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.similarity))
	assert.Equal(t, 4, testutil.CollectAndCount(m.stageDuration))
}

func TestNewMetricsRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordAnswer(SourceCache)
		m.recordFailure(StageEmbedding)
		m.recordScore(0.5)
	})
}
