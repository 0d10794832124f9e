package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/provider"
	"coringa/voicebot/internal/resilience"
)

// Result is the uniform outcome of a chain run. Provider is empty when the
// apology text was used or the context ended first.
type Result struct {
	Text     string
	Provider string
	Errors   []error
}

// Chain tries recognizers in order. It never returns an error: when every
// provider fails the transcript is a fixed apology, because the user did speak.
type Chain struct {
	providers []Recognizer
	breakers  []*resilience.Breaker
	log       *zap.Logger
}

func NewChain(logger *zap.Logger, providers ...Recognizer) *Chain {
	c := &Chain{providers: providers, log: logging.OrNop(logger).Named("stt.chain")}
	for range providers {
		c.breakers = append(c.breakers, resilience.NewBreaker())
	}
	return c
}

// NewFromConfig wires Wit.ai then Whisper. Offline mode wires nothing, so
// every capture is answered with the apology.
func NewFromConfig(p config.Providers, logger *zap.Logger) *Chain {
	if p.Offline() {
		logging.OrNop(logger).Info("recognition disabled", zap.String("mode", p.Mode))
		return NewChain(logger)
	}
	hc := provider.NewHTTPClient(p.RequestTimeout)
	return NewChain(logger,
		NewWitAI(p.WitAIKey, hc),
		NewWhisper(p.OpenAIKey, p.WhisperModel, p.WhisperLanguage, hc),
	)
}

func (c *Chain) Transcribe(ctx context.Context, a Audio) Result {
	var errs []error
	for i, p := range c.providers {
		if ctx.Err() != nil {
			return Result{Errors: append(errs, ctx.Err())}
		}
		if !c.breakers[i].Allow() {
			err := fmt.Errorf("%w: %s circuit open", ErrFailed, p.Name())
			errs = append(errs, err)
			providerCalls.WithLabelValues(p.Name(), "skipped").Inc()
			continue
		}
		start := time.Now()
		text, err := p.Transcribe(ctx, a)
		providerLatencyMS.WithLabelValues(p.Name()).Observe(float64(time.Since(start).Milliseconds()))
		if err == nil {
			c.breakers[i].Success()
			providerCalls.WithLabelValues(p.Name(), "ok").Inc()
			if i > 0 {
				c.log.Info("fallback provider succeeded", zap.String("provider", p.Name()), zap.Int("provider_index", i))
			}
			return Result{Text: text, Provider: p.Name(), Errors: errs}
		}
		errs = append(errs, err)
		if errors.Is(err, ErrUnavailable) {
			providerCalls.WithLabelValues(p.Name(), "unavailable").Inc()
		} else {
			providerCalls.WithLabelValues(p.Name(), "error").Inc()
			if c.breakers[i].Failure() {
				c.log.Warn("provider circuit opened", zap.String("provider", p.Name()))
			}
		}
		c.log.Warn("provider failed, trying next", zap.String("provider", p.Name()), zap.Int("provider_index", i), zap.Error(err))
	}
	if ctx.Err() != nil {
		return Result{Errors: append(errs, ctx.Err())}
	}

	apology := ApologyFailed
	if len(errs) == 0 || errors.Is(errs[len(errs)-1], ErrUnavailable) {
		apology = ApologyUnavailable
	}
	fallbackUsed.Inc()
	c.log.Warn("all recognizers failed, using apology", zap.Int("providers", len(c.providers)), zap.Errors("errors", errs))
	return Result{Text: apology, Errors: errs}
}
