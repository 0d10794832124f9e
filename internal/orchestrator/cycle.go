package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coringa/voicebot/internal/conversation"
	"coringa/voicebot/internal/floor"
	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/sessions"
)

// RunCycle captures user, answers them and plays the answer. Stages run
// strictly in order; every failure past capture still ends in playback of
// something (an apology or the placeholder).
func (s *Service) RunCycle(ctx context.Context, room, user string) floor.Outcome {
	id := uuid.NewString()
	log := s.log.With(zap.String("room", room), zap.String("user", user), zap.String("cycle_id", id))
	started := time.Now()

	s.events.Append(room, "capture_started", map[string]any{"user": user, "cycle_id": id})
	res, err := s.cap.Capture(ctx, room, user)
	stageLatencyMS.WithLabelValues("capture").Observe(float64(time.Since(started).Milliseconds()))
	if err != nil {
		if errors.Is(err, sessions.ErrAlreadyListening) {
			log.Debug("user already being captured")
		} else {
			log.Warn("capture refused", zap.Error(err))
		}
		return s.done(floor.Refused)
	}
	s.events.Append(room, "capture_finished", map[string]any{
		"user": user, "cycle_id": id, "state": res.State.String(),
		"bytes": res.Bytes, "recognized": res.Recognized,
	})
	if res.Cancelled || ctx.Err() != nil {
		return s.done(floor.Cancelled)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		s.events.Append(room, "capture_empty", map[string]any{"user": user, "cycle_id": id})
		return s.done(floor.Empty)
	}
	s.events.Append(room, "transcript", map[string]any{"user": user, "cycle_id": id, "text": text, "provider": res.Provider})

	t := time.Now()
	reply := s.Reply(ctx, user, text)
	stageLatencyMS.WithLabelValues("generate").Observe(float64(time.Since(t).Milliseconds()))
	if reply == "" {
		return s.done(floor.Cancelled)
	}
	s.events.Append(room, "reply", map[string]any{"user": user, "cycle_id": id, "text": reply})

	s.speak(ctx, log, room, id, reply)
	if ctx.Err() != nil {
		return s.done(floor.Cancelled)
	}
	log.Info("cycle complete", zap.Duration("elapsed", time.Since(started)))
	return s.done(floor.Replied)
}

func (s *Service) done(o floor.Outcome) floor.Outcome {
	cyclesTotal.WithLabelValues(o.String()).Inc()
	return o
}

// Reply records text as the user's turn, generates an answer with their
// persona and history, and records the answer. It returns "" only when ctx
// ended before a reply was produced.
func (s *Service) Reply(ctx context.Context, user, text string) string {
	s.convo.Append(user, conversation.RoleUser, text)
	c := s.convo.Context(user)
	r := s.gen.Generate(ctx, c.SystemPrompt, c.Turns)
	if r.Text == "" {
		return ""
	}
	s.convo.Append(user, conversation.RoleAssistant, r.Text)
	s.log.Debug("reply generated",
		zap.String("user", user),
		zap.String("persona", c.Persona),
		zap.String("provider", r.Provider),
		zap.Int("failed_providers", len(r.Errors)))
	return r.Text
}

// speak synthesizes text and plays it in room. The artifact is removed on
// every path.
func (s *Service) speak(ctx context.Context, log *zap.Logger, room, id, text string) {
	t := time.Now()
	r := s.synth.Synthesize(ctx, text)
	stageLatencyMS.WithLabelValues("synthesize").Observe(float64(time.Since(t).Milliseconds()))
	if r.Path == "" {
		log.Warn("no audio to play", zap.Errors("errors", r.Errors))
		return
	}
	defer func() {
		if err := s.synth.Scratch().Remove(r.Path); err != nil {
			log.Warn("artifact cleanup", zap.String("path", r.Path), zap.Error(err))
		}
	}()

	cs := s.reg.Get(room)
	if cs == nil {
		return
	}
	conn, ok := cs.Handle.(gateway.Connection)
	if !ok {
		return
	}
	s.events.Append(room, "playback_started", map[string]any{"cycle_id": id, "provider": r.Provider, "placeholder": r.Placeholder})
	t = time.Now()
	err := conn.Play(ctx, r.Path)
	stageLatencyMS.WithLabelValues("playback").Observe(float64(time.Since(t).Milliseconds()))
	payload := map[string]any{"cycle_id": id}
	if err != nil {
		payload["error"] = err.Error()
		log.Warn("playback failed", zap.Error(err))
	}
	s.events.Append(room, "playback_finished", payload)
}
