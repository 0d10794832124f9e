package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_outcomes_total",
		Help: "Captures by final state and outcome (transcribed, empty, discarded, cancelled)",
	}, []string{"state", "outcome"})

	captureBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "capture_pcm_bytes",
		Help:    "Decoded PCM bytes accumulated per capture",
		Buckets: prometheus.ExponentialBuckets(1000, 2.5, 10),
	})

	captureDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "capture_duration_ms",
		Help:    "Wall time from gate acquisition to transcript",
		Buckets: prometheus.ExponentialBuckets(100, 1.8, 10),
	})
)
