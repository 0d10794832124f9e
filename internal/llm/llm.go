// Package llm produces replies from a persona prompt and conversation history.
package llm

import (
	"context"
	"errors"

	"coringa/voicebot/internal/conversation"
)

var (
	// ErrUnavailable means the provider is not configured.
	ErrUnavailable = errors.New("llm: generation unavailable")
	// ErrFailed means the provider was called and returned no usable reply.
	ErrFailed = errors.New("llm: generation failed")
)

const (
	// ApologyFailed is used when the configured fallback also failed.
	ApologyFailed = "Desculpe, estou com dificuldades técnicas no momento. Tente novamente mais tarde."
	// ApologyNotConfigured is used when the primary failed and no fallback is configured.
	ApologyNotConfigured = "Desculpe, não consigo processar mensagens no momento. Verifique a configuração das APIs."
	// ApologyGeneral is used when no provider could even be attempted.
	ApologyGeneral = "Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente mais tarde."
)

// Generator is one text generation provider.
type Generator interface {
	Name() string
	Generate(ctx context.Context, systemPrompt string, turns []conversation.Turn) (string, error)
}
