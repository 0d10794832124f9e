package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"coringa/voicebot/internal/audio"
	"coringa/voicebot/internal/config"
)

func newScratch(t *testing.T) *Scratch {
	t.Helper()
	s, err := NewScratch(t.TempDir())
	if err != nil {
		t.Fatalf("scratch: %v", err)
	}
	return s
}

func assertPlaceholder(t *testing.T, res Result) {
	t.Helper()
	if !res.Placeholder || res.Path == "" {
		t.Fatalf("expected placeholder, got %+v", res)
	}
	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatalf("open placeholder: %v", err)
	}
	defer f.Close()
	if _, _, err := audio.ReadWAVPCM16(f); err != nil {
		t.Fatalf("placeholder is not a valid WAV: %v", err)
	}
}

func TestOfflineChainWritesPlaceholder(t *testing.T) {
	c := NewFromConfig(config.Providers{Mode: "offline", ElevenLabsKey: "k"}, newScratch(t), nil)
	if !c.Offline() {
		t.Fatalf("expected offline chain")
	}
	res := c.Synthesize(context.Background(), "olá")
	assertPlaceholder(t, res)
	if res.Provider != "offline" {
		t.Fatalf("unexpected provider %q", res.Provider)
	}
}

func TestChainFallsBackThenPlaceholder(t *testing.T) {
	s := newScratch(t)
	primary := &Mock{ID: "p", SynthesizeFunc: func(context.Context, string) (string, error) {
		return "", fmt.Errorf("%w: 500", ErrFailed)
	}}
	secondary := &Mock{ID: "s", SynthesizeFunc: func(ctx context.Context, text string) (string, error) {
		return s.Write(".mp3", []byte("ID3"))
	}}

	res := NewChain(nil, s, primary, secondary).Synthesize(context.Background(), "oi")
	if res.Provider != "s" || res.Placeholder {
		t.Fatalf("expected secondary result, got %+v", res)
	}
	if len(secondary.Texts()) != 1 || secondary.Texts()[0] != "oi" {
		t.Fatalf("secondary got %v", secondary.Texts())
	}

	res = NewChain(nil, s, primary, &Mock{ID: "s2"}).Synthesize(context.Background(), "oi")
	assertPlaceholder(t, res)
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 recorded errors, got %v", res.Errors)
	}
}

func TestElevenLabs(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "el-key" {
			t.Errorf("missing api key header")
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Write([]byte("fake-mp3"))
	}))
	defer srv.Close()

	el := NewElevenLabs(config.Providers{ElevenLabsKey: "el-key", ElevenVoiceID: "voice-1"}, srv.Client(), newScratch(t))
	el.BaseURL = srv.URL
	path, err := el.Synthesize(context.Background(), "bom dia")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "fake-mp3" || filepath.Ext(path) != ".mp3" {
		t.Fatalf("unexpected artifact %s: %q", path, got)
	}
	if body["model_id"] != "eleven_multilingual_v2" || body["text"] != "bom dia" {
		t.Fatalf("unexpected request body %v", body)
	}
	vs, _ := body["voice_settings"].(map[string]any)
	if vs["stability"] != 0.5 || vs["similarity_boost"] != 0.75 {
		t.Fatalf("unexpected voice settings %v", vs)
	}
}

func TestElevenLabsErrors(t *testing.T) {
	el := NewElevenLabs(config.Providers{}, nil, newScratch(t))
	if _, err := el.Synthesize(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	el = NewElevenLabs(config.Providers{ElevenLabsKey: "k"}, srv.Client(), newScratch(t))
	el.BaseURL = srv.URL
	if _, err := el.Synthesize(context.Background(), "x"); !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
}

func TestGoogleTranslateConcatenatesSegments(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tl") != "pt-BR" || q.Get("client") != "tw-ob" {
			t.Errorf("unexpected query %v", q)
		}
		seen = append(seen, q.Get("q"))
		w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	defer srv.Close()

	g := NewGoogleTranslate("", srv.Client(), newScratch(t))
	g.Host = srv.URL
	text := strings.Repeat("palavra ", 30) + "fim. " + strings.Repeat("outra ", 20)
	path, err := g.Synthesize(context.Background(), text)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(seen))
	}
	got, _ := os.ReadFile(path)
	if string(got) != "[0][1]" {
		t.Fatalf("segments not concatenated in order: %q", got)
	}
}

func TestSplitText(t *testing.T) {
	if got := splitText("  curto  ", 200); len(got) != 1 || got[0] != "curto" {
		t.Fatalf("unexpected %q", got)
	}
	long := strings.Repeat("a", 450)
	parts := splitText(long, 200)
	if len(parts) != 3 {
		t.Fatalf("expected hard split into 3, got %d", len(parts))
	}
	text := "Olá, tudo bem? " + strings.Repeat("é ", 120)
	for _, p := range splitText(text, 200) {
		if utf8.RuneCountInString(p) > 200 {
			t.Fatalf("segment too long: %d runes", utf8.RuneCountInString(p))
		}
	}
	if len(splitText("   ", 200)) != 0 {
		t.Fatalf("blank text must yield no segments")
	}
}

func TestScratchPurge(t *testing.T) {
	s := newScratch(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Write(".mp3", []byte("x")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	other := filepath.Join(s.Dir, "keep.txt")
	_ = os.WriteFile(other, []byte("k"), 0o644)
	n, err := s.Purge()
	if err != nil || n != 3 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("purge removed unrelated file")
	}
	if err := s.Remove(filepath.Join(s.Dir, "missing.mp3")); err != nil {
		t.Fatalf("removing missing artifact must not fail: %v", err)
	}
}
