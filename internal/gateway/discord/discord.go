// Package discord implements the voice gateway on top of discordgo. A room is
// a guild; the bot holds at most one voice connection per guild.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/logging"
)

const (
	// speakingIdle is how long a user may stay without packets before a
	// speech end is reported.
	speakingIdle = 100 * time.Millisecond
	idleCheck    = 40 * time.Millisecond
	streamBuffer = 128
	eventBuffer  = 64
)

// Gateway joins guild voice channels through a logged-in discordgo session.
type Gateway struct {
	s      *discordgo.Session
	ffmpeg string
	log    *zap.Logger

	mu     sync.Mutex
	conns  map[string]*Conn
	remove func()
}

func New(s *discordgo.Session, ffmpegPath string, logger *zap.Logger) *Gateway {
	g := &Gateway{
		s:      s,
		ffmpeg: ffmpegPath,
		log:    logging.OrNop(logger).Named("discord"),
		conns:  make(map[string]*Conn),
	}
	g.remove = s.AddHandler(g.onVoiceState)
	return g
}

// Close detaches the gateway's handlers and leaves every channel.
func (g *Gateway) Close() {
	if g.remove != nil {
		g.remove()
	}
	g.mu.Lock()
	rooms := make([]string, 0, len(g.conns))
	for r := range g.conns {
		rooms = append(rooms, r)
	}
	g.mu.Unlock()
	for _, r := range rooms {
		_ = g.Disconnect(r)
	}
}

func (g *Gateway) Connect(ctx context.Context, room, channelID string) (gateway.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	if c, ok := g.conns[room]; ok {
		g.mu.Unlock()
		if c.channel != channelID {
			return nil, fmt.Errorf("guild %s already connected to channel %s", room, c.channel)
		}
		return c, nil
	}
	g.mu.Unlock()

	vc, err := g.s.ChannelVoiceJoin(room, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}

	c := newConn(g, room, channelID, vc)
	g.mu.Lock()
	g.conns[room] = c
	g.mu.Unlock()
	c.start()

	g.log.Info("voice connected", zap.String("guild", room), zap.String("channel", channelID))
	return c, nil
}

func (g *Gateway) Disconnect(room string) error {
	g.mu.Lock()
	c, ok := g.conns[room]
	delete(g.conns, room)
	g.mu.Unlock()
	if !ok {
		return nil
	}
	err := c.close()
	g.log.Info("voice disconnected", zap.String("guild", room), zap.Error(err))
	return err
}

// onVoiceState turns the bot's own voice state changes into Ready and
// Disconnected events for the affected guild.
func (g *Gateway) onVoiceState(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || s.State == nil || s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}
	g.mu.Lock()
	c, ok := g.conns[v.GuildID]
	g.mu.Unlock()
	if !ok {
		return
	}
	switch {
	case v.ChannelID == "":
		c.emit(gateway.Event{Type: gateway.Disconnected, At: time.Now()})
	case v.ChannelID == c.channel:
		c.emit(gateway.Event{Type: gateway.Ready, At: time.Now()})
	default:
		g.log.Warn("bot moved to another channel", zap.String("guild", v.GuildID), zap.String("channel", v.ChannelID))
		c.emit(gateway.Event{Type: gateway.Disconnected, At: time.Now()})
	}
}

// Conn is one guild voice connection.
type Conn struct {
	g       *Gateway
	guild   string
	channel string
	vc      *discordgo.VoiceConnection
	events  chan gateway.Event
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	playMu  sync.Mutex
	log     *zap.Logger

	mu         sync.Mutex
	ssrcUser   map[uint32]string
	subs       map[string]*stream
	lastPacket map[string]time.Time
}

func newConn(g *Gateway, guild, channel string, vc *discordgo.VoiceConnection) *Conn {
	return &Conn{
		g:          g,
		guild:      guild,
		channel:    channel,
		vc:         vc,
		events:     make(chan gateway.Event, eventBuffer),
		done:       make(chan struct{}),
		log:        g.log.With(zap.String("guild", guild)),
		ssrcUser:   make(map[uint32]string),
		subs:       make(map[string]*stream),
		lastPacket: make(map[string]time.Time),
	}
}

func (c *Conn) start() {
	c.vc.AddHandler(func(_ *discordgo.VoiceConnection, u *discordgo.VoiceSpeakingUpdate) {
		if u.UserID == "" {
			return
		}
		c.mu.Lock()
		c.ssrcUser[uint32(u.SSRC)] = u.UserID
		c.mu.Unlock()
	})
	c.wg.Add(2)
	go c.recvLoop()
	go c.idleLoop()
}

func (c *Conn) Room() string { return c.guild }

func (c *Conn) Events() <-chan gateway.Event { return c.events }

// Members lists the users in the bot's voice channel, excluding the bot.
func (c *Conn) Members() []gateway.Member {
	st := c.g.s.State
	guild, err := st.Guild(c.guild)
	if err != nil {
		c.log.Debug("guild not in state", zap.Error(err))
		return nil
	}
	self := ""
	if st.User != nil {
		self = st.User.ID
	}
	var out []gateway.Member
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != c.channel || vs.UserID == self {
			continue
		}
		m := gateway.Member{ID: vs.UserID}
		if mem, err := st.Member(c.guild, vs.UserID); err == nil && mem.User != nil {
			m.Bot = mem.User.Bot
		} else if vs.Member != nil && vs.Member.User != nil {
			m.Bot = vs.Member.User.Bot
		}
		out = append(out, m)
	}
	return out
}

var errClosed = errors.New("voice connection closed")

// Subscribe returns the user's opus frames until ctx ends or the stream is closed.
func (c *Conn) Subscribe(ctx context.Context, user string) (gateway.AudioStream, error) {
	select {
	case <-c.done:
		return nil, errClosed
	default:
	}
	s := &stream{conn: c, user: user, frames: make(chan []byte, streamBuffer)}
	c.mu.Lock()
	if old, ok := c.subs[user]; ok {
		old.closeLocked()
	}
	c.subs[user] = s
	c.mu.Unlock()
	context.AfterFunc(ctx, s.Close)
	return s, nil
}

func (c *Conn) emit(e gateway.Event) {
	select {
	case c.events <- e:
	default:
		c.log.Warn("event dropped, consumer too slow", zap.String("type", e.Type.String()), zap.String("user", e.User))
	}
}

// silenceFrame is the opus frame discord sends around speech bursts.
func silenceFrame(b []byte) bool {
	return len(b) == 3 && b[0] == 0xF8 && b[1] == 0xFF && b[2] == 0xFE
}

func (c *Conn) recvLoop() {
	defer c.wg.Done()
	recv := c.vc.OpusRecv
	if recv == nil {
		c.log.Warn("voice connection has no receive channel, listening disabled")
		return
	}
	for {
		select {
		case <-c.done:
			return
		case p, ok := <-recv:
			if !ok {
				return
			}
			if p == nil || silenceFrame(p.Opus) {
				continue
			}
			c.deliver(p)
		}
	}
}

func (c *Conn) deliver(p *discordgo.Packet) {
	now := time.Now()
	c.mu.Lock()
	user, ok := c.ssrcUser[p.SSRC]
	if !ok {
		c.mu.Unlock()
		return
	}
	_, active := c.lastPacket[user]
	c.lastPacket[user] = now
	if s, ok := c.subs[user]; ok && !s.closed {
		frame := append([]byte(nil), p.Opus...)
		select {
		case s.frames <- frame:
		default:
			framesDropped.Inc()
		}
	}
	c.mu.Unlock()
	framesReceived.Inc()
	if !active {
		c.emit(gateway.Event{Type: gateway.SpeechStart, User: user, At: now})
	}
}

func (c *Conn) idleLoop() {
	defer c.wg.Done()
	t := time.NewTicker(idleCheck)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-t.C:
			var ended []string
			c.mu.Lock()
			for user, at := range c.lastPacket {
				if now.Sub(at) >= speakingIdle {
					delete(c.lastPacket, user)
					ended = append(ended, user)
				}
			}
			c.mu.Unlock()
			for _, u := range ended {
				c.emit(gateway.Event{Type: gateway.SpeechEnd, User: u, At: now})
			}
		}
	}
}

func (c *Conn) close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		for _, s := range c.subs {
			s.closeLocked()
		}
		c.mu.Unlock()
		c.playMu.Lock()
		err = c.vc.Disconnect()
		c.playMu.Unlock()
		c.wg.Wait()
	})
	return err
}

type stream struct {
	conn   *Conn
	user   string
	frames chan []byte
	closed bool
}

func (s *stream) Frames() <-chan []byte { return s.frames }

func (s *stream) Close() {
	s.conn.mu.Lock()
	s.closeLocked()
	s.conn.mu.Unlock()
}

// closeLocked must be called with conn.mu held.
func (s *stream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
	if cur, ok := s.conn.subs[s.user]; ok && cur == s {
		delete(s.conn.subs, s.user)
	}
}

var (
	_ gateway.Gateway    = (*Gateway)(nil)
	_ gateway.Connection = (*Conn)(nil)
)
