package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/conversation"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/resilience"
)

// Result is the uniform outcome of a chain run.
type Result struct {
	Text     string
	Provider string
	Errors   []error
}

// Chain tries generators in order and always yields reply text.
type Chain struct {
	providers []Generator
	breakers  []*resilience.Breaker
	stub      Generator
	log       *zap.Logger
}

func NewChain(logger *zap.Logger, providers ...Generator) *Chain {
	c := &Chain{providers: providers, log: logging.OrNop(logger).Named("llm.chain")}
	for range providers {
		c.breakers = append(c.breakers, resilience.NewBreaker())
	}
	return c
}

// NewOfflineChain answers every request with the keyword stub.
func NewOfflineChain(logger *zap.Logger) *Chain {
	c := NewChain(logger)
	c.stub = Offline{}
	return c
}

// NewFromConfig wires OpenRouter then OpenAI, or the offline stub when the bot
// runs in test mode or neither credential is usable. A provider whose key is
// missing reports ErrUnavailable and the chain moves on.
func NewFromConfig(ctx context.Context, p config.Providers, logger *zap.Logger) (*Chain, error) {
	if p.Offline() || (!config.Usable(p.OpenRouterKey) && !config.Usable(p.OpenAIKey)) {
		logging.OrNop(logger).Info("generation using offline stub", zap.String("mode", p.Mode))
		return NewOfflineChain(logger), nil
	}
	primary, err := NewOpenRouter(ctx, p)
	if err != nil {
		return nil, err
	}
	secondary, err := NewOpenAI(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewChain(logger, primary, secondary), nil
}

// Offline reports whether the chain answers from the stub.
func (c *Chain) Offline() bool { return c.stub != nil }

func (c *Chain) Generate(ctx context.Context, systemPrompt string, turns []conversation.Turn) Result {
	if c.stub != nil {
		text, _ := c.stub.Generate(ctx, systemPrompt, turns)
		terminalReplies.WithLabelValues("offline").Inc()
		return Result{Text: text, Provider: c.stub.Name()}
	}

	var errs []error
	for i, p := range c.providers {
		if ctx.Err() != nil {
			return Result{Errors: append(errs, ctx.Err())}
		}
		if !c.breakers[i].Allow() {
			errs = append(errs, fmt.Errorf("%w: %s circuit open", ErrFailed, p.Name()))
			providerCalls.WithLabelValues(p.Name(), "skipped").Inc()
			continue
		}
		start := time.Now()
		text, err := p.Generate(ctx, systemPrompt, turns)
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

	var apology string
	switch {
	case len(errs) == 0:
		apology = ApologyGeneral
	case errors.Is(errs[len(errs)-1], ErrUnavailable):
		apology = ApologyNotConfigured
	default:
		apology = ApologyFailed
	}
	terminalReplies.WithLabelValues("apology").Inc()
	c.log.Warn("all generators failed, using apology", zap.Errors("errors", errs))
	return Result{Text: apology, Errors: errs}
}
