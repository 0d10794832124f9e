package conversation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conversation_records",
		Help: "Conversation records currently held in memory",
	})

	sweepEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conversation_sweep_evictions_total",
		Help: "Records removed by the idle sweep",
	})
)
