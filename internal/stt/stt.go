// Package stt turns captured speech into text through an ordered list of providers.
package stt

import (
	"context"
	"errors"

	"coringa/voicebot/internal/audio"
)

var (
	// ErrUnavailable means the provider is not configured (no credentials).
	ErrUnavailable = errors.New("stt: recognition unavailable")
	// ErrFailed means the provider was called and did not produce a transcript.
	ErrFailed = errors.New("stt: recognition failed")
)

const (
	// ApologyFailed is returned when a configured fallback also failed.
	ApologyFailed = "Desculpe, não consegui transcrever o que você disse. Pode tentar novamente?"
	// ApologyUnavailable is returned when no fallback was configured.
	ApologyUnavailable = "Não consegui entender o que você disse. Por favor, tente novamente."
)

// Audio is interleaved PCM16 plus its format.
type Audio struct {
	PCM    []byte
	Format audio.Format
}

// Recognizer is one speech-to-text provider.
type Recognizer interface {
	Name() string
	Transcribe(ctx context.Context, a Audio) (string, error)
}
