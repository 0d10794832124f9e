package floor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "floor_poll_ticks_total",
		Help: "Poll ticks by decision (idle, speaking, proactive)",
	}, []string{"decision"})

	cycleStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "floor_cycle_starts_total",
		Help: "Pipeline cycles started by trigger",
	}, []string{"reason"})

	cycleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "floor_cycle_outcomes_total",
		Help: "Pipeline cycles by outcome",
	}, []string{"outcome"})
)
