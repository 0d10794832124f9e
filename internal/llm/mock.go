package llm

import (
	"context"
	"sync"

	"coringa/voicebot/internal/conversation"
)

// Call records one Generate invocation.
type Call struct {
	SystemPrompt string
	Turns        []conversation.Turn
}

// Mock is a scriptable Generator for tests.
type Mock struct {
	ID           string
	GenerateFunc func(ctx context.Context, systemPrompt string, turns []conversation.Turn) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (m *Mock) Name() string {
	if m.ID == "" {
		return "mock"
	}
	return m.ID
}

func (m *Mock) Generate(ctx context.Context, systemPrompt string, turns []conversation.Turn) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{SystemPrompt: systemPrompt, Turns: append([]conversation.Turn(nil), turns...)})
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, systemPrompt, turns)
	}
	return "ok", nil
}

func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

var _ Generator = (*Mock)(nil)
