package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/audio"
	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/provider"
	"coringa/voicebot/internal/resilience"
)

// Result is the uniform outcome of a chain run. Placeholder is set when the
// artifact is the silent stand-in rather than rendered speech.
type Result struct {
	Path        string
	Provider    string
	Placeholder bool
	Errors      []error
}

// Chain tries synthesizers in order and always leaves a playable file behind
// unless the scratch directory itself is unwritable.
type Chain struct {
	providers []Synthesizer
	breakers  []*resilience.Breaker
	scratch   *Scratch
	offline   bool
	log       *zap.Logger
}

func NewChain(logger *zap.Logger, scratch *Scratch, providers ...Synthesizer) *Chain {
	c := &Chain{providers: providers, scratch: scratch, log: logging.OrNop(logger).Named("tts.chain")}
	for range providers {
		c.breakers = append(c.breakers, resilience.NewBreaker())
	}
	return c
}

// NewOfflineChain writes the placeholder for every request.
func NewOfflineChain(logger *zap.Logger, scratch *Scratch) *Chain {
	c := NewChain(logger, scratch)
	c.offline = true
	return c
}

// NewFromConfig wires ElevenLabs then Google, or the offline stub in test mode
// or when ElevenLabs has no credential.
func NewFromConfig(p config.Providers, scratch *Scratch, logger *zap.Logger) *Chain {
	if p.Offline() || !config.Usable(p.ElevenLabsKey) {
		logging.OrNop(logger).Info("synthesis using offline stub", zap.String("mode", p.Mode))
		return NewOfflineChain(logger, scratch)
	}
	hc := provider.NewHTTPClient(p.RequestTimeout)
	return NewChain(logger, scratch,
		NewElevenLabs(p, hc, scratch),
		NewGoogleTranslate(p.GoogleTTSLang, hc, scratch),
	)
}

func (c *Chain) Offline() bool { return c.offline }

func (c *Chain) Scratch() *Scratch { return c.scratch }

func (c *Chain) Synthesize(ctx context.Context, text string) Result {
	if c.offline {
		return c.placeholder(nil, "offline")
	}
	var errs []error
	for i, p := range c.providers {
		if ctx.Err() != nil {
			return Result{Errors: append(errs, ctx.Err())}
		}
		if !c.breakers[i].Allow() {
			errs = append(errs, fmt.Errorf("%w: %s circuit open", ErrFailed, p.Name()))
			ttsSynthesisTotal.WithLabelValues(p.Name(), "skipped").Inc()
			continue
		}
		start := time.Now()
		path, err := p.Synthesize(ctx, text)
		ttsProviderLatencyMS.WithLabelValues(p.Name()).Observe(float64(time.Since(start).Milliseconds()))
		if err == nil {
			c.breakers[i].Success()
			ttsSynthesisTotal.WithLabelValues(p.Name(), "ok").Inc()
			if i > 0 {
				c.log.Info("fallback provider succeeded", zap.String("provider", p.Name()), zap.Int("chars", len(text)))
			}
			return Result{Path: path, Provider: p.Name(), Errors: errs}
		}
		errs = append(errs, err)
		if errors.Is(err, ErrUnavailable) {
			ttsSynthesisTotal.WithLabelValues(p.Name(), "unavailable").Inc()
		} else {
			ttsSynthesisTotal.WithLabelValues(p.Name(), "error").Inc()
			if c.breakers[i].Failure() {
				c.log.Warn("provider circuit opened", zap.String("provider", p.Name()))
			}
		}
		c.log.Warn("provider failed, trying next", zap.String("provider", p.Name()), zap.Int("provider_index", i), zap.Error(err))
	}
	if ctx.Err() != nil {
		return Result{Errors: append(errs, ctx.Err())}
	}
	return c.placeholder(errs, "placeholder")
}

func (c *Chain) placeholder(errs []error, kind string) Result {
	path := c.scratch.Path(".wav")
	if err := audio.WritePlaceholder(path); err != nil {
		c.log.Error("placeholder write failed", zap.String("path", path), zap.Error(err))
		return Result{Errors: append(errs, err)}
	}
	ttsPlaceholders.Inc()
	if kind != "offline" {
		c.log.Warn("all synthesizers failed, using placeholder audio", zap.Errors("errors", errs))
	}
	return Result{Path: path, Provider: kind, Placeholder: true, Errors: errs}
}
