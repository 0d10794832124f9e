package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_cycles_total",
		Help: "Pipeline cycles by outcome",
	}, []string{"outcome"})

	stageLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orch_stage_latency_ms",
		Help:    "Latency per pipeline stage",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 12),
	}, []string{"stage"})
)
