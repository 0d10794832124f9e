package stt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_provider_calls_total",
		Help: "Recognition provider calls by provider and status",
	}, []string{"provider", "status"})

	providerLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stt_provider_latency_ms",
		Help:    "Recognition provider round-trip time in milliseconds",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	}, []string{"provider"})

	fallbackUsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_apology_total",
		Help: "Transcriptions replaced by the fixed apology after every provider failed",
	})

	audioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_audio_bytes_total",
		Help: "Total PCM bytes submitted for recognition",
	})
)
