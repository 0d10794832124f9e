package stt

import (
	"context"
	"sync"
)

// Mock is a scriptable Recognizer for tests.
type Mock struct {
	ID             string
	TranscribeFunc func(ctx context.Context, a Audio) (string, error)

	mu    sync.Mutex
	calls []Audio
}

func (m *Mock) Name() string {
	if m.ID == "" {
		return "mock"
	}
	return m.ID
}

func (m *Mock) Transcribe(ctx context.Context, a Audio) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, a)
	m.mu.Unlock()
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, a)
	}
	return "", nil
}

// Calls returns the audio passed to every Transcribe call.
func (m *Mock) Calls() []Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Audio, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Recognizer = (*Mock)(nil)
