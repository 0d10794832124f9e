// Package tts renders reply text into an audio file in the scratch directory.
package tts

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the provider is not configured.
	ErrUnavailable = errors.New("tts: synthesis unavailable")
	// ErrFailed means the provider was called and produced no audio.
	ErrFailed = errors.New("tts: synthesis failed")
)

// Synthesizer renders text and returns the path of the written artifact.
// The caller owns the file and must remove it.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (string, error)
}
