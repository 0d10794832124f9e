// Package events keeps a bounded lifecycle log per room and fans new entries
// out to live subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxPerRoom caps the retained events per room.
const MaxPerRoom = 200

const TypeTruncated = "events_truncated"

type Event struct {
	ID        string         `json:"id"`
	Room      string         `json:"room"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	byRoom map[string][]Event
	subs   map[string]map[*subscriber]struct{}
}

func NewStore() *Store {
	return &Store{
		byRoom: make(map[string][]Event),
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Append records an event and broadcasts it. When the room exceeds
// MaxPerRoom the oldest entries are dropped and a single truncation marker is
// kept as the newest entry, so the total stays at MaxPerRoom.
func (s *Store) Append(room, typ string, payload map[string]any) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Room:      room,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	s.mu.Lock()
	s.byRoom[room] = append(s.byRoom[room], evt)
	if l := len(s.byRoom[room]); l > MaxPerRoom {
		keep := MaxPerRoom - 1
		kept := lastReal(s.byRoom[room], keep)
		dropped := l - len(kept)
		warn := Event{
			ID:        uuid.NewString(),
			Room:      room,
			Type:      TypeTruncated,
			Timestamp: time.Now().UTC(),
			Payload:   map[string]any{"dropped": dropped, "kept": keep},
		}
		s.byRoom[room] = append(kept, warn)
	}
	for sub := range s.subs[room] {
		sub.offer(evt)
	}
	s.mu.Unlock()
	eventsAppended.WithLabelValues(typ).Inc()
	return evt
}

// lastReal returns the newest n events, skipping earlier truncation markers.
func lastReal(src []Event, n int) []Event {
	out := make([]Event, n)
	i := n
	for j := len(src) - 1; j >= 0 && i > 0; j-- {
		if src[j].Type == TypeTruncated {
			continue
		}
		i--
		out[i] = src[j]
	}
	return out[i:]
}

// List returns a copy of the room's retained events, oldest first.
func (s *Store) List(room string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.byRoom[room]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}

// Forget drops the room's history. Live subscribers stay attached.
func (s *Store) Forget(room string) {
	s.mu.Lock()
	delete(s.byRoom, room)
	s.mu.Unlock()
}
