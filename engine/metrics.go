package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	answers       *prometheus.CounterVec   // by source
	failures      *prometheus.CounterVec   // by stage
	similarity    prometheus.Histogram     // best candidate score per lookup
	stageDuration *prometheus.HistogramVec // by stage
}

// NewMetrics creates the engine collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semcache",
			Name:      "answers_total",
			Help:      "Answers returned, by source (cache, generated, fallback)",
		}, []string{"source"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semcache",
			Name:      "failures_total",
			Help:      "Collaborator failures, by stage",
		}, []string{"stage"}),
		similarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semcache",
			Name:      "similarity_score",
			Help:      "Cosine similarity of the best cached candidate",
			Buckets:   []float64{0, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.925, 0.95, 0.975, 0.99, 1},
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semcache",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each collaborator call in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.answers, m.failures, m.similarity, m.stageDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordAnswer(source Source) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) recordFailure(stage Stage) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) recordScore(score float32) {
	if m == nil {
		return
	}
	m.similarity.Observe(float64(score))
}

func (m *Metrics) recordStage(stage Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}
