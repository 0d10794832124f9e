package tts

import (
	"context"
	"sync"
)

// Mock is a scriptable Synthesizer for tests.
type Mock struct {
	ID             string
	SynthesizeFunc func(ctx context.Context, text string) (string, error)

	mu    sync.Mutex
	texts []string
}

func (m *Mock) Name() string {
	if m.ID == "" {
		return "mock"
	}
	return m.ID
}

func (m *Mock) Synthesize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return "", ErrUnavailable
}

// Texts returns every text passed to Synthesize.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

var _ Synthesizer = (*Mock)(nil)
