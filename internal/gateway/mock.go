package gateway

import (
	"context"
	"errors"
	"sync"
)

// Mock is an in-memory Gateway for tests.
type Mock struct {
	ConnectErr error

	mu    sync.Mutex
	conns map[string]*MockConn
	disc  []string
}

func NewMock() *Mock { return &Mock{conns: make(map[string]*MockConn)} }

func (m *Mock) Connect(_ context.Context, room, channelID string) (Connection, error) {
	if m.ConnectErr != nil {
		return nil, m.ConnectErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := NewMockConn(room)
	m.conns[room] = c
	return c, nil
}

func (m *Mock) Disconnect(room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disc = append(m.disc, room)
	delete(m.conns, room)
	return nil
}

// Conn returns the connection created for room.
func (m *Mock) Conn(room string) *MockConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns[room]
}

func (m *Mock) Disconnected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.disc...)
}

// MockConn is an in-memory Connection.
type MockConn struct {
	room   string
	events chan Event

	// SubscribeErr fails every Subscribe call when set.
	SubscribeErr error
	// PlayFunc replaces the default instant playback.
	PlayFunc func(ctx context.Context, path string) error

	mu      sync.Mutex
	members []Member
	streams map[string]*MockStream
	subs    []string
	played  []string
}

func NewMockConn(room string) *MockConn {
	return &MockConn{room: room, events: make(chan Event, 64), streams: make(map[string]*MockStream)}
}

func (c *MockConn) Room() string { return c.room }

func (c *MockConn) SetMembers(ms ...Member) {
	c.mu.Lock()
	c.members = append([]Member(nil), ms...)
	c.mu.Unlock()
}

func (c *MockConn) Members() []Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Member(nil), c.members...)
}

// Subscribe opens a fresh stream for user; tests feed it through Stream(user).
func (c *MockConn) Subscribe(_ context.Context, user string) (AudioStream, error) {
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	s := &MockStream{frames: make(chan []byte, 256), closed: make(chan struct{})}
	c.mu.Lock()
	c.streams[user] = s
	c.subs = append(c.subs, user)
	c.mu.Unlock()
	return s, nil
}

// Stream returns the latest stream opened for user.
func (c *MockConn) Stream(user string) *MockStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[user]
}

// Subscriptions lists users in subscription order.
func (c *MockConn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subs...)
}

func (c *MockConn) Events() <-chan Event { return c.events }

// Emit queues an event as the platform would.
func (c *MockConn) Emit(e Event) { c.events <- e }

func (c *MockConn) Play(ctx context.Context, path string) error {
	c.mu.Lock()
	c.played = append(c.played, path)
	fn := c.PlayFunc
	c.mu.Unlock()
	if fn != nil {
		return fn(ctx, path)
	}
	return ctx.Err()
}

func (c *MockConn) Played() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.played...)
}

// MockStream is a manually fed AudioStream.
type MockStream struct {
	frames chan []byte
	once   sync.Once
	closed chan struct{}
	mu     sync.Mutex
	ended  bool
}

func (s *MockStream) Frames() <-chan []byte { return s.frames }

// Push delivers one frame; it returns an error once the stream is closed.
func (s *MockStream) Push(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return errors.New("stream closed")
	}
	s.frames <- frame
	return nil
}

// End closes the frame channel as a platform would at end of stream.
func (s *MockStream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.ended = true
		close(s.frames)
	}
}

func (s *MockStream) Close() {
	s.once.Do(func() { close(s.closed) })
	s.End()
}

// Closed is closed once the consumer calls Close.
func (s *MockStream) Closed() <-chan struct{} { return s.closed }

var (
	_ Gateway    = (*Mock)(nil)
	_ Connection = (*MockConn)(nil)
)
