package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/provider"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabs renders mp3 through the text-to-speech REST endpoint.
type ElevenLabs struct {
	APIKey   string
	VoiceID  string
	Model    string
	Settings VoiceSettings
	BaseURL  string
	Client   *http.Client
	Scratch  *Scratch
}

func NewElevenLabs(p config.Providers, client *http.Client, scratch *Scratch) *ElevenLabs {
	return &ElevenLabs{
		APIKey:   p.ElevenLabsKey,
		VoiceID:  orDefault(p.ElevenVoiceID, "pNInz6obpgDQGcFmaJgB"),
		Model:    orDefault(p.ElevenModel, "eleven_multilingual_v2"),
		Settings: VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		BaseURL:  elevenLabsBaseURL,
		Client:   client,
		Scratch:  scratch,
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (string, error) {
	if !config.Usable(e.APIKey) {
		return "", fmt.Errorf("%w: ELEVENLABS_API_KEY not set", ErrUnavailable)
	}
	body := map[string]any{
		"text":           text,
		"model_id":       e.Model,
		"voice_settings": e.Settings,
	}
	reqBytes, _ := json.Marshal(body)
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", orDefault(e.BaseURL, elevenLabsBaseURL), e.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("accept", "audio/mpeg")
	req.Header.Set("content-type", "application/json")
	resp, err := clientOrDefault(e.Client).Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()
	if err := provider.CheckResponse(e.Name(), resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailed, err)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFailed, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrFailed)
	}
	path, err := e.Scratch.Write(".mp3", b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return path, nil
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
