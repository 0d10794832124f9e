package sessions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_channels_open",
		Help: "Open channel sessions",
	})

	gaugeListening = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_listening_active",
		Help: "Users currently holding the listening gate",
	})

	gateRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_gate_rejections_total",
		Help: "Capture requests rejected because the user was already being listened to",
	})
)
