package sessions

import (
	"context"
	"sync"
	"time"
)

// State is the capture lifecycle of a ListeningSession.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateCompleted
	StateTimedOut
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ListeningSession is one bounded capture attempt for one user. It exists only
// while its user holds the exclusivity gate.
type ListeningSession struct {
	ID        string
	Room      string
	User      string
	StartedAt time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	release sync.Once

	mu     sync.Mutex
	state  State
	bytes  int
	frames int
}

// Context is cancelled when the session is released or its channel closes.
func (l *ListeningSession) Context() context.Context { return l.ctx }

func (l *ListeningSession) SetState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *ListeningSession) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// AddFrame counts one decoded frame of n bytes.
func (l *ListeningSession) AddFrame(n int) {
	l.mu.Lock()
	l.frames++
	l.bytes += n
	l.mu.Unlock()
}

func (l *ListeningSession) Counters() (bytes, frames int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bytes, l.frames
}

// ListeningInfo is a point-in-time view for the admin API.
type ListeningInfo struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	StartedAt time.Time `json:"started_at"`
	State     string    `json:"state"`
	Bytes     int       `json:"bytes"`
	Frames    int       `json:"frames"`
}

func (l *ListeningSession) Info() ListeningInfo {
	b, f := l.Counters()
	return ListeningInfo{ID: l.ID, Room: l.Room, User: l.User, StartedAt: l.StartedAt, State: l.State().String(), Bytes: b, Frames: f}
}
