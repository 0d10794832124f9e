package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/conversation"
	"coringa/voicebot/internal/provider"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openAIBaseURL     = "https://api.openai.com/v1"
)

type chatModel interface {
	Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ChatModel drives any OpenAI-compatible chat completion endpoint.
type ChatModel struct {
	name  string
	model chatModel
}

// ChatModelConfig selects the endpoint and model for NewChatModel.
type ChatModelConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Headers   map[string]string
}

// NewChatModel builds a provider. A missing credential yields a provider that
// reports ErrUnavailable rather than an error here.
func NewChatModel(ctx context.Context, cfg ChatModelConfig) (*ChatModel, error) {
	m := &ChatModel{name: cfg.Name}
	if !config.Usable(cfg.APIKey) {
		return m, nil
	}
	hc := provider.NewHTTPClient(cfg.Timeout)
	if len(cfg.Headers) > 0 {
		hc.Transport = &provider.HeaderTransport{Headers: cfg.Headers}
	}
	mc := &openai.ChatModelConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		HTTPClient: hc,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxTokens = &maxTokens
	}
	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("%s chat model: %w", cfg.Name, err)
	}
	m.model = cm
	return m, nil
}

// NewOpenRouter targets OpenRouter with its attribution headers.
func NewOpenRouter(ctx context.Context, p config.Providers) (*ChatModel, error) {
	return NewChatModel(ctx, ChatModelConfig{
		Name:      "openrouter",
		BaseURL:   openRouterBaseURL,
		APIKey:    p.OpenRouterKey,
		Model:     p.OpenRouterModel,
		MaxTokens: p.MaxTokens,
		Timeout:   p.RequestTimeout,
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/coringa/voicebot",
			"X-Title":      "Bot Coringa",
		},
	})
}

func NewOpenAI(ctx context.Context, p config.Providers) (*ChatModel, error) {
	return NewChatModel(ctx, ChatModelConfig{
		Name:      "openai",
		BaseURL:   openAIBaseURL,
		APIKey:    p.OpenAIKey,
		Model:     p.OpenAIModel,
		MaxTokens: p.MaxTokens,
		Timeout:   p.RequestTimeout,
	})
}

func (m *ChatModel) Name() string { return m.name }

func (m *ChatModel) Generate(ctx context.Context, systemPrompt string, turns []conversation.Turn) (string, error) {
	if m.model == nil {
		return "", fmt.Errorf("%w: %s credentials not set", ErrUnavailable, m.name)
	}
	out, err := m.model.Generate(ctx, toMessages(systemPrompt, turns))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFailed, m.name, err)
	}
	text := ""
	if out != nil {
		text = strings.TrimSpace(out.Content)
	}
	if text == "" {
		return "", fmt.Errorf("%w: %s returned empty reply", ErrFailed, m.name)
	}
	return text, nil
}

func toMessages(systemPrompt string, turns []conversation.Turn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns)+1)
	if systemPrompt != "" {
		msgs = append(msgs, &schema.Message{Role: schema.System, Content: systemPrompt})
	}
	for _, t := range turns {
		role := schema.User
		if t.Role == conversation.RoleAssistant {
			role = schema.Assistant
		}
		msgs = append(msgs, &schema.Message{Role: role, Content: t.Text})
	}
	return msgs
}

var _ Generator = (*ChatModel)(nil)
