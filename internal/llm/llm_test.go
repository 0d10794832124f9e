package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/conversation"
)

func userTurns(text string) []conversation.Turn {
	return []conversation.Turn{{Role: conversation.RoleUser, Text: text}}
}

func TestOfflineReplies(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Me conte uma piada", "Por que o computador foi ao médico? Porque estava com vírus! 😄"},
		{"Chama o CORINGA aí", "Olá! Sou o Bot Coringa, pronto para trazer caos e risadas! Por que tão sério? Como posso te ajudar hoje?"},
		{"Olá, tudo bem?", "Olá! Estou bem, obrigado por perguntar. Como posso ajudar você hoje?"},
		{"qual é o seu nome", "Sou um assistente virtual criado para ajudar em diversas tarefas. Posso responder perguntas, contar piadas e muito mais!"},
		{"como está o clima", "Não tenho acesso a informações de tempo real, mas espero que o tempo esteja bom onde você está!"},
		{"abacaxi", "Entendi o que você disse. Como posso ajudar com isso?"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := OfflineReply(tc.in); got != tc.want {
				t.Fatalf("OfflineReply(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestOfflineUsesLastUserTurn(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "conte uma piada"},
		{Role: conversation.RoleAssistant, Text: "coringa"},
		{Role: conversation.RoleUser, Text: "abacaxi"},
	}
	got, err := Offline{}.Generate(context.Background(), "", turns)
	if err != nil || got != offlineDefault {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestOfflineChainNeverCallsProviders(t *testing.T) {
	c := NewOfflineChain(nil)
	res := c.Generate(context.Background(), "sys", userTurns("piada"))
	if res.Provider != "offline" || !strings.Contains(res.Text, "vírus") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestNewFromConfigSelectsStub(t *testing.T) {
	cases := []config.Providers{
		{Mode: "test", OpenRouterKey: "real"},
		{Mode: "live"},
		{Mode: "live", OpenRouterKey: "sua_chave_openrouter"},
	}
	for _, p := range cases {
		c, err := NewFromConfig(context.Background(), p, nil)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if !c.Offline() {
			t.Fatalf("expected offline chain for %+v", p)
		}
	}
}

func TestNewFromConfigUsesOpenAIAlone(t *testing.T) {
	c, err := NewFromConfig(context.Background(), config.Providers{Mode: "live", OpenAIKey: "sk-x"}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.Offline() {
		t.Fatal("OpenAI key configured but chain answers from the stub")
	}
	if len(c.providers) != 2 {
		t.Fatalf("expected openrouter and openai in the chain, got %d", len(c.providers))
	}
}

func TestChainFallbackAndApologies(t *testing.T) {
	failed := func(id string) *Mock {
		return &Mock{ID: id, GenerateFunc: func(context.Context, string, []conversation.Turn) (string, error) {
			return "", fmt.Errorf("%w: down", ErrFailed)
		}}
	}
	unavailable := &Mock{ID: "u", GenerateFunc: func(context.Context, string, []conversation.Turn) (string, error) {
		return "", ErrUnavailable
	}}

	t.Run("secondary answers", func(t *testing.T) {
		second := &Mock{ID: "s"}
		res := NewChain(nil, failed("p"), second).Generate(context.Background(), "sys", userTurns("oi"))
		if res.Text != "ok" || res.Provider != "s" {
			t.Fatalf("unexpected %+v", res)
		}
		if calls := second.Calls(); len(calls) != 1 || calls[0].SystemPrompt != "sys" {
			t.Fatalf("secondary got %+v", calls)
		}
	})
	t.Run("both fail", func(t *testing.T) {
		res := NewChain(nil, failed("p"), failed("s")).Generate(context.Background(), "sys", userTurns("oi"))
		if res.Text != ApologyFailed || len(res.Errors) != 2 {
			t.Fatalf("unexpected %+v", res)
		}
	})
	t.Run("fallback not configured", func(t *testing.T) {
		res := NewChain(nil, failed("p"), unavailable).Generate(context.Background(), "sys", userTurns("oi"))
		if res.Text != ApologyNotConfigured {
			t.Fatalf("unexpected %+v", res)
		}
	})
	t.Run("no providers", func(t *testing.T) {
		res := NewChain(nil).Generate(context.Background(), "sys", userTurns("oi"))
		if res.Text != ApologyGeneral {
			t.Fatalf("unexpected %+v", res)
		}
	})
}

type fakeModel struct {
	got   []*schema.Message
	reply string
	err   error
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func TestChatModelMapsRoles(t *testing.T) {
	fm := &fakeModel{reply: "  resposta  "}
	m := &ChatModel{name: "fake", model: fm}
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "a"},
		{Role: conversation.RoleAssistant, Text: "b"},
		{Role: conversation.RoleUser, Text: "c"},
	}
	got, err := m.Generate(context.Background(), "persona", turns)
	if err != nil || got != "resposta" {
		t.Fatalf("got %q, %v", got, err)
	}
	wantRoles := []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.User}
	if len(fm.got) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(fm.got))
	}
	for i, r := range wantRoles {
		if fm.got[i].Role != r {
			t.Fatalf("message %d: role %q, want %q", i, fm.got[i].Role, r)
		}
	}
}

func TestChatModelErrors(t *testing.T) {
	m, err := NewChatModel(context.Background(), ChatModelConfig{Name: "none"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := m.Generate(context.Background(), "", userTurns("oi")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	empty := &ChatModel{name: "empty", model: &fakeModel{reply: "   "}}
	if _, err := empty.Generate(context.Background(), "", userTurns("oi")); !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed for empty reply, got %v", err)
	}

	broken := &ChatModel{name: "broken", model: &fakeModel{err: errors.New("503")}}
	if _, err := broken.Generate(context.Background(), "", userTurns("oi")); !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
}

func TestChatModelAgainstCompatibleServer(t *testing.T) {
	var gotHeader string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Title")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Olá!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer srv.Close()

	m, err := NewChatModel(context.Background(), ChatModelConfig{
		Name:      "compat",
		BaseURL:   srv.URL,
		APIKey:    "key",
		Model:     "m",
		MaxTokens: 300,
		Headers:   map[string]string{"X-Title": "Bot Coringa"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got, err := m.Generate(context.Background(), "persona", userTurns("oi"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "Olá!" {
		t.Fatalf("unexpected reply %q", got)
	}
	if gotHeader != "Bot Coringa" {
		t.Fatalf("attribution header missing, got %q", gotHeader)
	}
	if gotBody["model"] != "m" {
		t.Fatalf("unexpected request model %v", gotBody["model"])
	}
}
