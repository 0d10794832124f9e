// Package orchestrator wires the session registry, the turn-taking controller
// and the capture/recognition/generation/synthesis stages into one service.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/capture"
	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/conversation"
	"coringa/voicebot/internal/events"
	"coringa/voicebot/internal/floor"
	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/llm"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/sessions"
	"coringa/voicebot/internal/tts"
)

var ErrUnknownPersona = errors.New("unknown persona")

type Options struct {
	ReconnectGrace  time.Duration
	InitialArmDelay time.Duration
}

func OptionsFromConfig(c config.Config) Options {
	return Options{ReconnectGrace: c.Turn.ReconnectGrace, InitialArmDelay: c.Turn.InitialArmDelay}
}

// Deps are the collaborators the service drives. Gateway may be nil when only
// Reply is used.
type Deps struct {
	Registry     *sessions.Registry
	Gateway      gateway.Gateway
	Capture      *capture.Pipeline
	Conversation *conversation.Store
	Generator    *llm.Chain
	Synthesizer  *tts.Chain
	Events       *events.Store
}

type Service struct {
	reg    *sessions.Registry
	gw     gateway.Gateway
	cap    *capture.Pipeline
	convo  *conversation.Store
	gen    *llm.Chain
	synth  *tts.Chain
	events *events.Store
	floor  *floor.Controller
	opts   Options
	log    *zap.Logger

	wg sync.WaitGroup
}

func New(d Deps, floorOpts floor.Options, opts Options, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	if d.Events == nil {
		d.Events = events.NewStore()
	}
	s := &Service{
		reg:    d.Registry,
		gw:     d.Gateway,
		cap:    d.Capture,
		convo:  d.Conversation,
		gen:    d.Generator,
		synth:  d.Synthesizer,
		events: d.Events,
		opts:   opts,
		log:    logger.Named("orchestrator"),
	}
	if floorOpts.OnRetry == nil {
		floorOpts.OnRetry = func(room, user string, streak int) {
			s.events.Append(room, "retry_scheduled", map[string]any{"user": user, "empty_streak": streak})
		}
	}
	s.floor = floor.New(d.Registry, s, floorOpts, logger)
	return s
}

func (s *Service) Events() *events.Store { return s.events }

func (s *Service) Conversation() *conversation.Store { return s.convo }

func (s *Service) Synthesizer() *tts.Chain { return s.synth }

// ConnectRequest is what the connect command carries.
type ConnectRequest struct {
	Room      string
	ChannelID string
	// User invoked the command; Persona, if set, is applied to them.
	User    string
	Persona string
}

// Connect joins the voice channel, opens the room and arms listening after
// the initial delay. A persona is validated before anything is joined.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (sessions.ChannelInfo, error) {
	if s.gw == nil {
		return sessions.ChannelInfo{}, errors.New("no voice gateway configured")
	}
	if s.reg.Get(req.Room) != nil {
		return sessions.ChannelInfo{}, sessions.ErrAlreadyOpen
	}
	if req.Persona != "" {
		if req.User == "" || !s.convo.SetPersona(req.User, req.Persona) {
			return sessions.ChannelInfo{}, fmt.Errorf("%w: %s", ErrUnknownPersona, req.Persona)
		}
	}

	conn, err := s.gw.Connect(ctx, req.Room, req.ChannelID)
	if err != nil {
		return sessions.ChannelInfo{}, fmt.Errorf("connect gateway: %w", err)
	}
	cs, err := s.reg.Open(req.Room, req.ChannelID, conn)
	if err != nil {
		if derr := s.gw.Disconnect(req.Room); derr != nil {
			s.log.Warn("gateway disconnect after failed open", zap.String("room", req.Room), zap.Error(derr))
		}
		return sessions.ChannelInfo{}, err
	}
	s.events.Append(req.Room, "channel_opened", map[string]any{"channel": req.ChannelID, "persona": req.Persona})

	s.wg.Add(2)
	go s.watch(cs, conn)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(s.opts.InitialArmDelay)
		defer t.Stop()
		select {
		case <-cs.Done():
		case <-t.C:
			s.floor.Arm(cs.Room)
		}
	}()
	return cs.Info(), nil
}

// Disconnect closes the room and leaves the voice channel. It is idempotent
// and reports whether a room was open.
func (s *Service) Disconnect(room string) bool {
	closed := s.reg.Close(room)
	if s.gw != nil {
		if err := s.gw.Disconnect(room); err != nil {
			s.log.Warn("gateway disconnect", zap.String("room", room), zap.Error(err))
		}
	}
	if closed {
		s.events.Append(room, "channel_closed", nil)
	}
	return closed
}

// SetPersona assigns a persona tag to user.
func (s *Service) SetPersona(user, tag string) error {
	if !s.convo.SetPersona(user, tag) {
		return fmt.Errorf("%w: %s", ErrUnknownPersona, tag)
	}
	return nil
}

func (s *Service) ClearHistory(user string) { s.convo.ClearHistory(user) }

// Rooms lists the open rooms.
func (s *Service) Rooms() []sessions.ChannelInfo {
	var out []sessions.ChannelInfo
	for _, id := range s.reg.Rooms() {
		if cs := s.reg.Get(id); cs != nil {
			out = append(out, cs.Info())
		}
	}
	return out
}

// Room returns the room's state and its active captures.
func (s *Service) Room(room string) (sessions.ChannelInfo, []sessions.ListeningInfo, bool) {
	cs := s.reg.Get(room)
	if cs == nil {
		return sessions.ChannelInfo{}, nil, false
	}
	var ls []sessions.ListeningInfo
	for _, l := range s.reg.ListeningInRoom(room) {
		ls = append(ls, l.Info())
	}
	return cs.Info(), ls, true
}

// Shutdown closes every room and waits for in-flight cycles to unwind, then
// removes leftover audio artifacts.
func (s *Service) Shutdown(ctx context.Context) error {
	for _, room := range s.reg.Rooms() {
		s.Disconnect(room)
	}
	done := make(chan struct{})
	go func() {
		s.floor.Wait()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.synth != nil && s.synth.Scratch() != nil {
		n, err := s.synth.Scratch().Purge()
		if err != nil {
			s.log.Warn("scratch purge", zap.Error(err))
		} else if n > 0 {
			s.log.Info("scratch purged", zap.Int("files", n))
		}
	}
	return nil
}
