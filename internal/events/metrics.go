package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "room_events_total",
		Help: "Room lifecycle events recorded, by type",
	}, []string{"type"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_events_dropped_total",
		Help: "Events not delivered to a slow stream subscriber",
	})

	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "room_event_subscribers",
		Help: "Live event stream subscribers",
	})
)
