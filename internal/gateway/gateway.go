// Package gateway defines what the bot needs from a voice platform.
package gateway

import (
	"context"
	"time"
)

type EventType int

const (
	SpeechStart EventType = iota + 1
	SpeechEnd
	Ready
	Disconnected
)

func (t EventType) String() string {
	switch t {
	case SpeechStart:
		return "speech_start"
	case SpeechEnd:
		return "speech_end"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a speaking or connection-state signal. User is empty for
// connection-state events.
type Event struct {
	Type EventType
	User string
	At   time.Time
}

// Member is someone present in the voice channel.
type Member struct {
	ID  string
	Bot bool
}

// AudioStream delivers one user's encoded audio frames. Frames is closed once
// the stream ends.
type AudioStream interface {
	Frames() <-chan []byte
	Close()
}

// Player plays an audio file and returns when playback has finished.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Connection is a live voice channel.
type Connection interface {
	Player
	Room() string
	Members() []Member
	Subscribe(ctx context.Context, user string) (AudioStream, error)
	Events() <-chan Event
}

// Gateway opens and closes voice connections.
type Gateway interface {
	Connect(ctx context.Context, room, channelID string) (Connection, error)
	Disconnect(room string) error
}
