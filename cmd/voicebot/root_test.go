package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"coringa/voicebot/internal/auth"
	"coringa/voicebot/internal/llm"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BOT_MODE", "offline")
	t.Setenv("AUDIO_SCRATCH_DIR", t.TempDir())
	t.Setenv("STREAM_TOKEN_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDemoText(t *testing.T) {
	out, err := run(t, "demo", "--text", "me conta uma piada", "--persona", "engraçado")
	if err != nil {
		t.Fatalf("demo: %v", err)
	}
	if !strings.Contains(out, "persona: engraçado") {
		t.Fatalf("missing persona line:\n%s", out)
	}
	if !strings.Contains(out, llm.OfflineReply("me conta uma piada")) {
		t.Fatalf("missing reply:\n%s", out)
	}
}

func TestDemoDefaultPhrasesWithSynthesis(t *testing.T) {
	out, err := run(t, "demo", "--synthesize")
	if err != nil {
		t.Fatalf("demo: %v", err)
	}
	for _, p := range demoPhrases {
		if !strings.Contains(out, "> "+p) {
			t.Fatalf("phrase %q not sent:\n%s", p, out)
		}
	}
	if got := strings.Count(out, "audio (placeholder)"); got != len(demoPhrases) {
		t.Fatalf("expected %d placeholder artifacts, got %d:\n%s", len(demoPhrases), got, out)
	}
}

func TestDemoRejectsUnknownPersona(t *testing.T) {
	if _, err := run(t, "demo", "--persona", "pirata"); err == nil {
		t.Fatal("expected error for unknown persona")
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "g1", "--ttl", "1m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	room, _, err := auth.ValidateStreamToken("s3cret", strings.TrimSpace(out), "g1", time.Now(), 0)
	if err != nil || room != "g1" {
		t.Fatalf("minted token invalid: room=%q err=%v", room, err)
	}
}
