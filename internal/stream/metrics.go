package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResumeOutcomes counts resume requests by how they were answered.
	// Labels: outcome (live, replay, stale, nothing, not_found, disabled, error)
	ResumeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "stream",
			Name:      "resume_outcomes_total",
			Help:      "Resume requests by outcome",
		},
		[]string{"outcome"},
	)

	// TransportErrors counts pub/sub failures that were downgraded to
	// "not resumable".
	TransportErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "stream",
			Name:      "transport_errors_total",
			Help:      "Stream transport failures while tapping a stream",
		},
	)

	StreamsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "stream",
			Name:      "started_total",
			Help:      "Generation streams started",
		},
	)

	// StreamsFinished counts finished streams. Labels: result (ok, error)
	StreamsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "stream",
			Name:      "finished_total",
			Help:      "Generation streams finished by result",
		},
		[]string{"result"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chat",
			Subsystem: "stream",
			Name:      "generation_duration_seconds",
			Help:      "Wall time from stream start to close",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
	)
)
