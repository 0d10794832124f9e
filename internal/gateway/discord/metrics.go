package discord

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discord_voice_frames_received_total",
		Help: "Opus frames received from mapped speakers",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discord_voice_frames_dropped_total",
		Help: "Frames dropped because a subscriber fell behind",
	})

	playbackFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discord_voice_playback_frames_total",
		Help: "Opus frames sent for playback",
	})
)
