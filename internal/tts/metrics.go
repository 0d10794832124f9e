package tts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ttsSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_synthesis_total",
		Help: "Synthesis attempts by provider and status",
	}, []string{"provider", "status"})

	ttsProviderLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tts_provider_latency_ms",
		Help:    "Synthesis provider round-trip time in milliseconds",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	}, []string{"provider"})

	ttsPlaceholders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_placeholder_total",
		Help: "Placeholder artifacts written because no provider produced audio",
	})

	ttsArtifactBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_artifact_bytes",
		Help:    "Size of synthesized audio artifacts",
		Buckets: prometheus.ExponentialBuckets(4096, 2, 10),
	})
)
