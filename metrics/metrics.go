package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SynthesisAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatshorts_synthesis_attempts_total",
			Help: "Speech synthesis requests by outcome",
		},
		[]string{"outcome"},
	)

	SynthesisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatshorts_synthesis_latency_seconds",
			Help:    "Latency of a single speech synthesis request",
			Buckets: prometheus.DefBuckets,
		},
	)

	StepsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatshorts_steps_skipped_total",
			Help: "Timeline steps skipped because the snapshot could not be rendered",
		},
	)

	Compositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatshorts_compositions_total",
			Help: "Finished compositions by result",
		},
		[]string{"result"},
	)

	CompositionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatshorts_composition_duration_seconds",
			Help:    "Wall time of a full composition including encode",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatshorts_tasks_processed_total",
			Help: "Queue tasks handled by the worker",
		},
		[]string{"queue", "status"},
	)
)
