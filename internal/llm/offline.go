package llm

import (
	"context"
	"strings"

	"coringa/voicebot/internal/conversation"
)

type keywordRule struct {
	keywords []string
	reply    string
}

// Rules are checked in order; the first match wins.
var offlineRules = []keywordRule{
	{[]string{"coringa"}, "Olá! Sou o Bot Coringa, pronto para trazer caos e risadas! Por que tão sério? Como posso te ajudar hoje?"},
	{[]string{"olá", "oi", "tudo bem"}, "Olá! Estou bem, obrigado por perguntar. Como posso ajudar você hoje?"},
	{[]string{"piada"}, "Por que o computador foi ao médico? Porque estava com vírus! 😄"},
	{[]string{"quem é você", "seu nome", "o que você"}, "Sou um assistente virtual criado para ajudar em diversas tarefas. Posso responder perguntas, contar piadas e muito mais!"},
	{[]string{"tempo", "clima"}, "Não tenho acesso a informações de tempo real, mas espero que o tempo esteja bom onde você está!"},
}

const offlineDefault = "Entendi o que você disse. Como posso ajudar com isso?"

// Offline answers from canned replies by keyword. It never touches the network.
type Offline struct{}

func (Offline) Name() string { return "offline" }

func (Offline) Generate(_ context.Context, _ string, turns []conversation.Turn) (string, error) {
	return OfflineReply(lastUserText(turns)), nil
}

// OfflineReply picks the canned reply for text.
func OfflineReply(text string) string {
	lower := strings.ToLower(text)
	for _, r := range offlineRules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.reply
			}
		}
	}
	return offlineDefault
}

func lastUserText(turns []conversation.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleUser {
			return turns[i].Text
		}
	}
	return ""
}

var _ Generator = Offline{}
