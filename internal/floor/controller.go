package floor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/sessions"
)

// Outcome is how a pipeline cycle ended, as far as turn-taking cares.
type Outcome int

const (
	// Replied means the user was heard and a reply was played (or attempted).
	Replied Outcome = iota
	// Empty means nothing usable was captured.
	Empty
	// Refused means the gate or the room's cycle slot was taken.
	Refused
	// Cancelled means the channel closed mid-cycle.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Replied:
		return "replied"
	case Empty:
		return "empty"
	case Refused:
		return "refused"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Runner runs one capture-to-playback cycle and returns once it is over.
type Runner interface {
	RunCycle(ctx context.Context, room, user string) Outcome
}

type Options struct {
	PollInterval   time.Duration
	SpeechEndGrace time.Duration
	RearmDelay     time.Duration
	RetryDelay     time.Duration
	// MaxEmptyRetries bounds consecutive same-user retries after empty
	// captures. Zero retries forever.
	MaxEmptyRetries int
	// OnRetry, when set, is told each time a same-user retry is scheduled.
	OnRetry func(room, user string, emptyStreak int)
}

func OptionsFromConfig(c config.Config) Options {
	return Options{
		PollInterval:    c.Turn.PollInterval,
		SpeechEndGrace:  c.Turn.SpeechEndGrace,
		RearmDelay:      c.Turn.RearmDelay,
		RetryDelay:      c.Turn.RetryDelay,
		MaxEmptyRetries: c.Turn.MaxEmptyRetries,
	}
}

// Controller is the single authority over who may speak in each room.
type Controller struct {
	reg  *sessions.Registry
	run  Runner
	opts Options
	log  *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	nudges map[string]chan struct{}
	wg     sync.WaitGroup
}

func New(reg *sessions.Registry, run Runner, opts Options, logger *zap.Logger) *Controller {
	return &Controller{
		reg:    reg,
		run:    run,
		opts:   opts,
		log:    logging.OrNop(logger).Named("floor"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		nudges: make(map[string]chan struct{}),
	}
}

// WithRand makes proactive selection deterministic.
func (c *Controller) WithRand(r *rand.Rand) *Controller {
	c.rngMu.Lock()
	c.rng = r
	c.rngMu.Unlock()
	return c
}

// Arm starts the room's poll loop. It is a no-op when the room is unknown,
// closed or already armed.
func (c *Controller) Arm(room string) bool {
	cs := c.reg.Get(room)
	if cs == nil || !cs.TryArm() {
		return false
	}
	nudge := make(chan struct{}, 1)
	c.mu.Lock()
	c.nudges[room] = nudge
	c.mu.Unlock()

	c.wg.Add(1)
	go c.poll(cs, nudge)
	c.log.Info("listening armed", zap.String("room", room), zap.Duration("poll_interval", c.opts.PollInterval))
	return true
}

// Rearm reopens the floor: it arms the room if needed and asks for an
// immediate poll tick.
func (c *Controller) Rearm(room string) {
	c.Arm(room)
	c.mu.Lock()
	nudge := c.nudges[room]
	c.mu.Unlock()
	if nudge == nil {
		return
	}
	select {
	case nudge <- struct{}{}:
	default:
	}
}

// RetryUser starts another capture for the same user.
func (c *Controller) RetryUser(room, user string) bool {
	cs := c.reg.Get(room)
	if cs == nil {
		return false
	}
	return c.start(cs, user, "retry")
}

// OnSpeechStart marks user as speaking and starts capturing them right away
// unless they are already being listened to.
func (c *Controller) OnSpeechStart(room, user string, at time.Time) bool {
	cs := c.reg.Get(room)
	if cs == nil {
		return false
	}
	cs.MarkSpeaking(user, at)
	if c.reg.Listening(user) != nil {
		return false
	}
	return c.start(cs, user, "speech_start")
}

// OnSpeechEnd clears the speaking mark after the grace delay, unless the user
// started speaking again in the meantime.
func (c *Controller) OnSpeechEnd(room, user string, at time.Time) {
	cs := c.reg.Get(room)
	if cs == nil {
		return
	}
	c.after(cs, c.opts.SpeechEndGrace, func() {
		if cs.ClearSpeaking(user, at) {
			c.log.Debug("speaking cleared", zap.String("room", room), zap.String("user", user))
		}
	})
}

// Wait blocks until every poll loop and scheduled action has exited.
func (c *Controller) Wait() { c.wg.Wait() }

func (c *Controller) poll(cs *sessions.ChannelSession, nudge chan struct{}) {
	defer c.wg.Done()
	defer func() {
		cs.Disarm()
		c.mu.Lock()
		if c.nudges[cs.Room] == nudge {
			delete(c.nudges, cs.Room)
		}
		c.mu.Unlock()
	}()

	t := time.NewTicker(c.opts.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-cs.Done():
			c.log.Info("poll stopped, channel closed", zap.String("room", cs.Room))
			return
		case <-t.C:
		case <-nudge:
		}
		c.tick(cs)
	}
}

func (c *Controller) tick(cs *sessions.ChannelSession) {
	conn, ok := cs.Handle.(gateway.Connection)
	if !ok {
		return
	}
	_, busy := cs.InCycle()
	if _, held := cs.RetryPending(); held {
		busy = true
	}
	snap := Snapshot{
		Members:       conn.Members(),
		Speaking:      cs.Speaking(),
		Gated:         func(u string) bool { return c.reg.Listening(u) != nil },
		RoomListening: len(c.reg.ListeningInRoom(cs.Room)),
		Busy:          busy,
	}
	c.rngMu.Lock()
	d := Decide(snap, c.rng)
	c.rngMu.Unlock()
	pollTicks.WithLabelValues(decisionLabel(d)).Inc()
	if !d.Start {
		return
	}
	if d.Reason == "proactive" {
		c.log.Info("nobody speaking, listening proactively", zap.String("room", cs.Room), zap.String("user", d.User))
	}
	c.start(cs, d.User, d.Reason)
}

// start claims the room's cycle slot for user and runs the cycle in the
// background.
func (c *Controller) start(cs *sessions.ChannelSession, user, reason string) bool {
	if !cs.TryBeginCycle(user) {
		return false
	}
	cycleStarts.WithLabelValues(reason).Inc()
	c.log.Debug("cycle starting", zap.String("room", cs.Room), zap.String("user", user), zap.String("reason", reason))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		out := c.run.RunCycle(cs.Context(), cs.Room, user)
		// a retry hold must be in place before the slot frees up
		c.finish(cs, user, out)
		cs.EndCycle()
	}()
	return true
}

func (c *Controller) finish(cs *sessions.ChannelSession, user string, out Outcome) {
	cycleOutcomes.WithLabelValues(out.String()).Inc()
	switch out {
	case Replied:
		cs.ResetEmpty(user)
		c.after(cs, c.opts.RearmDelay, func() { c.Rearm(cs.Room) })
	case Empty:
		n := cs.RecordEmpty(user)
		if c.opts.MaxEmptyRetries > 0 && n > c.opts.MaxEmptyRetries {
			c.log.Info("empty retry cap reached, reopening floor",
				zap.String("room", cs.Room), zap.String("user", user), zap.Int("empty_streak", n))
			cs.ResetEmpty(user)
			c.after(cs, c.opts.RearmDelay, func() { c.Rearm(cs.Room) })
			return
		}
		c.log.Debug("nothing heard, retrying same user",
			zap.String("room", cs.Room), zap.String("user", user), zap.Duration("delay", c.opts.RetryDelay))
		cs.HoldForRetry(user)
		if c.opts.OnRetry != nil {
			c.opts.OnRetry(cs.Room, user, n)
		}
		c.after(cs, c.opts.RetryDelay, func() {
			cs.ReleaseRetry()
			c.RetryUser(cs.Room, user)
		})
	case Refused, Cancelled:
	}
}

// after runs fn once d has passed, unless the channel closes first.
func (c *Controller) after(cs *sessions.ChannelSession, d time.Duration, fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-cs.Done():
		case <-t.C:
			fn()
		}
	}()
}

func decisionLabel(d Decision) string {
	if !d.Start {
		return "idle"
	}
	return d.Reason
}
