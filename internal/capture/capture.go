// Package capture records one user's utterance, bounded by a silence window
// and a hard timeout, and hands the audio to recognition.
package capture

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/audio"
	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/sessions"
	"coringa/voicebot/internal/stt"
)

// Recognizer is satisfied by *stt.Chain.
type Recognizer interface {
	Transcribe(ctx context.Context, a stt.Audio) stt.Result
}

// DecoderFactory builds a decoder for one capture; decoders keep per-stream state.
type DecoderFactory func(f audio.Format) (audio.Decoder, error)

type Options struct {
	Timeout  time.Duration
	Silence  time.Duration
	MinBytes int
	// SilenceRMS is the level below which a decoded frame does not count as
	// speech. Zero treats every frame as speech.
	SilenceRMS float64
	Format     audio.Format
}

// OptionsFromConfig maps the capture section of the config.
func OptionsFromConfig(c config.Config) Options {
	return Options{
		Timeout:    c.Capture.Timeout,
		Silence:    c.Capture.Silence,
		MinBytes:   c.Capture.MinBytes,
		SilenceRMS: c.Capture.SilenceRMS,
		Format:     audio.Format{SampleRate: c.Capture.SampleRate, Channels: c.Capture.Channels},
	}
}

// Result describes how a capture ended. Text is empty when nothing usable was
// heard; Recognized reports whether the recognition chain ran at all.
type Result struct {
	Text       string
	Provider   string
	State      sessions.State
	Bytes      int
	Duration   time.Duration
	Recognized bool
	// Cancelled is set when the channel closed or the caller gave up.
	Cancelled bool
}

// Pipeline runs captures against the rooms held in a registry. The gate is
// held through recognition so a user is never captured twice for one turn.
type Pipeline struct {
	reg        *sessions.Registry
	rec        Recognizer
	opts       Options
	newDecoder DecoderFactory
	log        *zap.Logger
}

func New(reg *sessions.Registry, rec Recognizer, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Format.SampleRate == 0 {
		opts.Format = audio.DiscordFormat
	}
	return &Pipeline{
		reg:  reg,
		rec:  rec,
		opts: opts,
		newDecoder: func(f audio.Format) (audio.Decoder, error) {
			return audio.NewOpusDecoder(f)
		},
		log: logging.OrNop(logger).Named("capture"),
	}
}

// WithDecoder replaces the opus decoder factory.
func (p *Pipeline) WithDecoder(f DecoderFactory) *Pipeline {
	p.newDecoder = f
	return p
}

type endReason int

const (
	endSilence endReason = iota
	endStream
	endTimeout
	endDecode
	endCancel
)

// Capture listens to user in room until silence or timeout and returns the
// transcript. The only errors are gate refusals (sessions.ErrAlreadyListening,
// sessions.ErrNotOpen); every other failure resolves to an empty Result.
func (p *Pipeline) Capture(ctx context.Context, room, user string) (Result, error) {
	ls, err := p.reg.Acquire(room, user)
	if err != nil {
		if errors.Is(err, sessions.ErrAlreadyListening) {
			p.log.Debug("capture rejected, user already gated", zap.String("room", room), zap.String("user", user))
		}
		return Result{}, err
	}
	defer p.reg.Release(ls)

	start := time.Now()
	res := p.run(ctx, ls)
	res.Duration = time.Since(start)
	ls.SetState(res.State)

	captureOutcomes.WithLabelValues(res.State.String(), outcomeLabel(res)).Inc()
	captureBytes.Observe(float64(res.Bytes))
	captureDurationMS.Observe(float64(res.Duration.Milliseconds()))
	p.log.Info("capture finished",
		zap.String("room", room),
		zap.String("user", user),
		zap.String("capture_id", ls.ID),
		zap.String("state", res.State.String()),
		zap.Int("bytes", res.Bytes),
		zap.Bool("recognized", res.Recognized),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, ls *sessions.ListeningSession) Result {
	ls.SetState(sessions.StateCapturing)

	capCtx, cancel := context.WithCancel(ls.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	cs := p.reg.Get(ls.Room)
	if cs == nil {
		return Result{State: sessions.StateErrored, Cancelled: true}
	}
	conn, ok := cs.Handle.(gateway.Connection)
	if !ok {
		p.log.Error("channel has no voice connection", zap.String("room", ls.Room))
		return Result{State: sessions.StateErrored}
	}
	stream, err := conn.Subscribe(capCtx, ls.User)
	if err != nil {
		p.log.Warn("audio subscription failed", zap.String("user", ls.User), zap.Error(err))
		return Result{State: sessions.StateErrored}
	}
	defer stream.Close()

	dec, err := p.newDecoder(p.opts.Format)
	if err != nil {
		p.log.Error("decoder init failed", zap.Error(err))
		return Result{State: sessions.StateErrored}
	}

	pcm, reason := p.collect(capCtx, ls, stream, dec)

	res := Result{Bytes: len(pcm)}
	switch reason {
	case endTimeout:
		res.State = sessions.StateTimedOut
	case endDecode:
		res.State = sessions.StateErrored
	case endCancel:
		res.State = sessions.StateErrored
		res.Cancelled = true
		return res
	default:
		res.State = sessions.StateCompleted
	}

	if len(pcm) < p.opts.MinBytes {
		return res
	}
	if reason == endTimeout {
		p.log.Info("capture timed out, recognizing partial audio", zap.String("user", ls.User), zap.Int("bytes", len(pcm)))
	}

	rr := p.rec.Transcribe(capCtx, stt.Audio{PCM: pcm, Format: p.opts.Format})
	res.Recognized = true
	res.Text = rr.Text
	res.Provider = rr.Provider
	if capCtx.Err() != nil {
		res.Cancelled = true
		res.Text = ""
	}
	return res
}

// collect reads frames until the silence window, the hard timeout, a decode
// error, the end of the stream or cancellation. The silence window only starts
// once the first speech frame has arrived.
func (p *Pipeline) collect(ctx context.Context, ls *sessions.ListeningSession, stream gateway.AudioStream, dec audio.Decoder) ([]byte, endReason) {
	hard := time.NewTimer(p.opts.Timeout)
	defer hard.Stop()

	var (
		pcm     []byte
		quiet   *time.Timer
		quietCh <-chan time.Time
	)
	defer func() {
		if quiet != nil {
			quiet.Stop()
		}
	}()

	frames := stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return pcm, endCancel
		case <-hard.C:
			return pcm, endTimeout
		case <-quietCh:
			return pcm, endSilence
		case frame, ok := <-frames:
			if !ok {
				return pcm, endStream
			}
			out, err := dec.Decode(frame)
			if err != nil {
				p.log.Warn("frame decode failed", zap.String("user", ls.User), zap.Error(err))
				return pcm, endDecode
			}
			pcm = append(pcm, out...)
			ls.AddFrame(len(out))

			if p.opts.SilenceRMS > 0 && audio.RMS(out) < p.opts.SilenceRMS {
				continue
			}
			if quiet == nil {
				quiet = time.NewTimer(p.opts.Silence)
				quietCh = quiet.C
			} else {
				quiet.Reset(p.opts.Silence)
			}
		}
	}
}

func outcomeLabel(r Result) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case !r.Recognized:
		return "discarded"
	case r.Text == "":
		return "empty"
	default:
		return "transcribed"
	}
}
