package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_provider_calls_total",
		Help: "Generation provider calls by provider and status",
	}, []string{"provider", "status"})

	providerLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_provider_latency_ms",
		Help:    "Generation provider round-trip time in milliseconds",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	}, []string{"provider"})

	terminalReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_terminal_replies_total",
		Help: "Replies produced by the offline stub or a fixed apology",
	}, []string{"kind"})
)
