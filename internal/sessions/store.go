// Package sessions is the registry of open voice channels and of the users
// currently being listened to.
package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coringa/voicebot/internal/logging"
)

var (
	ErrAlreadyOpen      = errors.New("channel session already open")
	ErrNotOpen          = errors.New("channel session not open")
	ErrAlreadyListening = errors.New("user already has a listening session")
)

// Registry holds at most one ChannelSession per room and at most one
// ListeningSession per user. The listening map is the exclusivity gate.
type Registry struct {
	mu        sync.Mutex
	channels  map[string]*ChannelSession
	listening map[string]*ListeningSession
	now       func() time.Time
	log       *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		channels:  make(map[string]*ChannelSession),
		listening: make(map[string]*ListeningSession),
		now:       time.Now,
		log:       logging.OrNop(logger).Named("sessions"),
	}
}

// Open registers a channel for room. handle is stored as-is.
func (r *Registry) Open(room, channelID string, handle any) (*ChannelSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[room]; ok {
		return nil, ErrAlreadyOpen
	}
	cs := newChannelSession(room, channelID, handle, r.now().UTC())
	r.channels[room] = cs
	gaugeChannels.Set(float64(len(r.channels)))
	r.log.Info("channel opened", zap.String("room", room), zap.String("channel", channelID))
	return cs, nil
}

// Close removes the room's channel, cancels it and releases every listening
// session bound to it. Closing an unknown room is a no-op; the return value
// reports whether anything was closed.
func (r *Registry) Close(room string) bool {
	r.mu.Lock()
	cs, ok := r.channels[room]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.channels, room)
	gaugeChannels.Set(float64(len(r.channels)))
	var owned []*ListeningSession
	for _, ls := range r.listening {
		if ls.Room == room {
			owned = append(owned, ls)
		}
	}
	r.mu.Unlock()

	cs.cancel()
	for _, ls := range owned {
		r.Release(ls)
	}
	r.log.Info("channel closed", zap.String("room", room), zap.Int("listening_released", len(owned)))
	return true
}

func (r *Registry) Get(room string) *ChannelSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[room]
}

// Rooms returns the open room identifiers, sorted.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.channels))
	for id := range r.channels {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Acquire takes the exclusivity gate for user in room. The returned session's
// context is a child of the channel's, so closing the channel cancels it.
func (r *Registry) Acquire(room, user string) (*ListeningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.channels[room]
	if !ok || cs.Closed() {
		return nil, ErrNotOpen
	}
	if _, busy := r.listening[user]; busy {
		gateRejections.Inc()
		return nil, ErrAlreadyListening
	}
	ctx, cancel := context.WithCancel(cs.ctx)
	ls := &ListeningSession{
		ID:        uuid.NewString(),
		Room:      room,
		User:      user,
		StartedAt: r.now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
	}
	r.listening[user] = ls
	gaugeListening.Set(float64(len(r.listening)))
	return ls, nil
}

// Release frees the gate held by ls and cancels its context. Only the first
// call has any effect, and a stale session never evicts a newer one.
func (r *Registry) Release(ls *ListeningSession) {
	if ls == nil {
		return
	}
	ls.release.Do(func() {
		r.mu.Lock()
		if cur, ok := r.listening[ls.User]; ok && cur == ls {
			delete(r.listening, ls.User)
		}
		gaugeListening.Set(float64(len(r.listening)))
		r.mu.Unlock()
		ls.cancel()
	})
}

// Listening returns user's active session, if any.
func (r *Registry) Listening(user string) *ListeningSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening[user]
}

// ListeningInRoom returns the active sessions bound to room.
func (r *Registry) ListeningInRoom(room string) []*ListeningSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ListeningSession
	for _, ls := range r.listening {
		if ls.Room == room {
			out = append(out, ls)
		}
	}
	return out
}

// CloseAll closes every open room.
func (r *Registry) CloseAll() int {
	n := 0
	for _, room := range r.Rooms() {
		if r.Close(room) {
			n++
		}
	}
	return n
}
