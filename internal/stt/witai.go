package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"coringa/voicebot/internal/audio"
	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/provider"
)

const witSpeechURL = "https://api.wit.ai/speech"

// WitAI posts WAV audio to the Wit.ai speech endpoint.
type WitAI struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewWitAI(apiKey string, client *http.Client) *WitAI {
	return &WitAI{APIKey: apiKey, BaseURL: witSpeechURL, Client: client}
}

func (w *WitAI) Name() string { return "witai" }

func (w *WitAI) Transcribe(ctx context.Context, a Audio) (string, error) {
	if !config.Usable(w.APIKey) {
		return "", fmt.Errorf("%w: WIT_AI_KEY not set", ErrUnavailable)
	}
	audioBytes.Add(float64(len(a.PCM)))
	wav := audio.EncodeWAV(a.PCM, a.Format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, orDefault(w.BaseURL, witSpeechURL), bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.APIKey)
	req.Header.Set("Content-Type", "audio/wav")
	resp, err := clientOrDefault(w.Client).Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()
	if err := provider.CheckResponse(w.Name(), resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailed, err)
	}
	text, err := parseWitStream(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return text, nil
}

// parseWitStream reads the sequence of JSON objects Wit.ai streams back and
// keeps the final transcript, falling back to the last non-empty partial.
func parseWitStream(r io.Reader) (string, error) {
	dec := json.NewDecoder(r)
	var last, final string
	for {
		var msg struct {
			Text    string `json:"text"`
			IsFinal bool   `json:"is_final"`
			Type    string `json:"type"`
		}
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if last != "" || final != "" {
				break
			}
			return "", fmt.Errorf("decode wit response: %w", err)
		}
		if msg.Text == "" {
			continue
		}
		last = msg.Text
		if msg.IsFinal || msg.Type == "FINAL_UNDERSTANDING" || msg.Type == "FINAL_TRANSCRIPTION" {
			final = msg.Text
		}
	}
	if final != "" {
		return strings.TrimSpace(final), nil
	}
	return strings.TrimSpace(last), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
