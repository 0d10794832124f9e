package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coringa/voicebot/internal/audio"
)

var sample = Audio{PCM: make([]byte, 6000), Format: audio.DiscordFormat}

func failing(id string, err error) *Mock {
	return &Mock{ID: id, TranscribeFunc: func(context.Context, Audio) (string, error) { return "", err }}
}

func TestChainPrimarySucceeds(t *testing.T) {
	primary := &Mock{ID: "p", TranscribeFunc: func(context.Context, Audio) (string, error) { return "olá", nil }}
	secondary := &Mock{ID: "s"}
	res := NewChain(nil, primary, secondary).Transcribe(context.Background(), sample)
	if res.Text != "olá" || res.Provider != "p" {
		t.Fatalf("unexpected result %+v", res)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary must not be called")
	}
}

func TestChainFallsBack(t *testing.T) {
	primary := failing("p", fmt.Errorf("%w: boom", ErrFailed))
	secondary := &Mock{ID: "s", TranscribeFunc: func(context.Context, Audio) (string, error) { return "tudo bem", nil }}
	res := NewChain(nil, primary, secondary).Transcribe(context.Background(), sample)
	if res.Text != "tudo bem" || res.Provider != "s" || len(res.Errors) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestChainApology(t *testing.T) {
	t.Run("secondary failed", func(t *testing.T) {
		res := NewChain(nil,
			failing("p", fmt.Errorf("%w: a", ErrFailed)),
			failing("s", fmt.Errorf("%w: b", ErrFailed)),
		).Transcribe(context.Background(), sample)
		if res.Text != ApologyFailed {
			t.Fatalf("expected failed apology, got %q", res.Text)
		}
	})
	t.Run("secondary not configured", func(t *testing.T) {
		res := NewChain(nil,
			failing("p", fmt.Errorf("%w: a", ErrFailed)),
			NewWhisper("", "", "", nil),
		).Transcribe(context.Background(), sample)
		if res.Text != ApologyUnavailable {
			t.Fatalf("expected unavailable apology, got %q", res.Text)
		}
	})
	t.Run("no providers", func(t *testing.T) {
		res := NewChain(nil).Transcribe(context.Background(), sample)
		if res.Text != ApologyUnavailable {
			t.Fatalf("expected unavailable apology, got %q", res.Text)
		}
	})
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &Mock{ID: "p"}
	res := NewChain(nil, primary).Transcribe(ctx, sample)
	if res.Text != "" || primary.CallCount() != 0 {
		t.Fatalf("cancelled chain must not call providers or apologise: %+v", res)
	}
	if !errors.Is(res.Errors[len(res.Errors)-1], context.Canceled) {
		t.Fatalf("expected context error, got %v", res.Errors)
	}
}

func TestChainSkipsOpenCircuit(t *testing.T) {
	calls := 0
	primary := &Mock{ID: "p", TranscribeFunc: func(context.Context, Audio) (string, error) {
		calls++
		return "", fmt.Errorf("%w: down", ErrFailed)
	}}
	secondary := &Mock{ID: "s", TranscribeFunc: func(context.Context, Audio) (string, error) { return "ok", nil }}
	c := NewChain(nil, primary, secondary)
	for i := 0; i < 5; i++ {
		c.Transcribe(context.Background(), sample)
	}
	if calls != 3 {
		t.Fatalf("expected primary to be skipped after 3 failures, got %d calls", calls)
	}
}

func TestWitAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer wit-key" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		b, _ := io.ReadAll(r.Body)
		if string(b[:4]) != "RIFF" {
			t.Errorf("expected WAV body")
		}
		io.WriteString(w, `{"text":"me"}`+"\n"+`{"text":"me conte"}`+"\n"+`{"text":"me conte uma piada","is_final":true}`)
	}))
	defer srv.Close()

	wit := NewWitAI("wit-key", srv.Client())
	wit.BaseURL = srv.URL
	got, err := wit.Transcribe(context.Background(), sample)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "me conte uma piada" {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestWitAIErrors(t *testing.T) {
	if _, err := NewWitAI("sua_chave_wit", nil).Transcribe(context.Background(), sample); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()
	wit := NewWitAI("k", srv.Client())
	wit.BaseURL = srv.URL
	if _, err := wit.Transcribe(context.Background(), sample); !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
}

func TestWhisper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "pt" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" bom dia "}`)
	}))
	defer srv.Close()

	wh := NewWhisper("sk", "", "", srv.Client())
	wh.BaseURL = srv.URL
	got, err := wh.Transcribe(context.Background(), sample)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "bom dia" {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestParseWitStreamWithoutFinal(t *testing.T) {
	got, err := parseWitStream(strings.NewReader(`{"text":"a"}{"text":"ab"}{"text":""}`))
	if err != nil || got != "ab" {
		t.Fatalf("got %q, %v", got, err)
	}
}
