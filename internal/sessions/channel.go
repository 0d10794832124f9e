package sessions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ChannelSession is the per-room state for one voice connection.
type ChannelSession struct {
	Room      string    `json:"room"`
	ChannelID string    `json:"channel_id"`
	OpenedAt  time.Time `json:"opened_at"`

	// Handle is the gateway connection; the registry never looks inside it.
	Handle any `json:"-"`

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	armed        bool
	cycleUser    string
	inCycle      bool
	retryUser    string
	speaking     map[string]time.Time
	emptyStreaks map[string]int
}

func newChannelSession(room, channelID string, handle any, now time.Time) *ChannelSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChannelSession{
		Room:         room,
		ChannelID:    channelID,
		OpenedAt:     now,
		Handle:       handle,
		ctx:          ctx,
		cancel:       cancel,
		speaking:     make(map[string]time.Time),
		emptyStreaks: make(map[string]int),
	}
}

// Context is cancelled when the channel closes.
func (c *ChannelSession) Context() context.Context { return c.ctx }

func (c *ChannelSession) Done() <-chan struct{} { return c.ctx.Done() }

func (c *ChannelSession) Closed() bool { return c.ctx.Err() != nil }

// TryArm marks the room as armed. It returns false if it already was.
func (c *ChannelSession) TryArm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed || c.Closed() {
		return false
	}
	c.armed = true
	return true
}

func (c *ChannelSession) Disarm() {
	c.mu.Lock()
	c.armed = false
	c.mu.Unlock()
}

func (c *ChannelSession) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// TryBeginCycle claims the room's single pipeline slot for user.
func (c *ChannelSession) TryBeginCycle(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inCycle || c.Closed() {
		return false
	}
	c.inCycle = true
	c.cycleUser = user
	return true
}

func (c *ChannelSession) EndCycle() {
	c.mu.Lock()
	c.inCycle = false
	c.cycleUser = ""
	c.mu.Unlock()
}

// InCycle returns the user whose pipeline cycle is running, if any.
func (c *ChannelSession) InCycle() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycleUser, c.inCycle
}

// HoldForRetry reserves the next cycle for user until ReleaseRetry.
func (c *ChannelSession) HoldForRetry(user string) {
	c.mu.Lock()
	c.retryUser = user
	c.mu.Unlock()
}

func (c *ChannelSession) ReleaseRetry() {
	c.mu.Lock()
	c.retryUser = ""
	c.mu.Unlock()
}

// RetryPending returns the user a retry is held for, if any.
func (c *ChannelSession) RetryPending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryUser, c.retryUser != ""
}

func (c *ChannelSession) MarkSpeaking(user string, at time.Time) {
	c.mu.Lock()
	c.speaking[user] = at
	c.mu.Unlock()
}

// ClearSpeaking removes user only if they have not spoken again since 'since'.
func (c *ChannelSession) ClearSpeaking(user string, since time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.speaking[user]
	if !ok || at.After(since) {
		return false
	}
	delete(c.speaking, user)
	return true
}

func (c *ChannelSession) IsSpeaking(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.speaking[user]
	return ok
}

// Speaking lists the users currently marked as audibly active, sorted.
func (c *ChannelSession) Speaking() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.speaking))
	for u := range c.speaking {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// RecordEmpty bumps the consecutive empty-capture count for user and returns it.
func (c *ChannelSession) RecordEmpty(user string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emptyStreaks[user]++
	return c.emptyStreaks[user]
}

func (c *ChannelSession) ResetEmpty(user string) {
	c.mu.Lock()
	delete(c.emptyStreaks, user)
	c.mu.Unlock()
}

// ChannelInfo is a point-in-time view for the admin API.
type ChannelInfo struct {
	Room      string    `json:"room"`
	ChannelID string    `json:"channel_id"`
	OpenedAt  time.Time `json:"opened_at"`
	Armed     bool      `json:"armed"`
	CycleUser string    `json:"cycle_user,omitempty"`
	Speaking  []string  `json:"speaking"`
}

func (c *ChannelSession) Info() ChannelInfo {
	user, _ := c.InCycle()
	return ChannelInfo{
		Room:      c.Room,
		ChannelID: c.ChannelID,
		OpenedAt:  c.OpenedAt,
		Armed:     c.Armed(),
		CycleUser: user,
		Speaking:  c.Speaking(),
	}
}
