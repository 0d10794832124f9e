package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"coringa/voicebot/internal/audio"
	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/provider"
)

const openAITranscriptionsURL = "https://api.openai.com/v1/audio/transcriptions"

// Whisper uploads WAV audio to the OpenAI transcription endpoint.
type Whisper struct {
	APIKey   string
	Model    string
	Language string
	BaseURL  string
	Client   *http.Client
}

func NewWhisper(apiKey, model, language string, client *http.Client) *Whisper {
	return &Whisper{
		APIKey:   apiKey,
		Model:    orDefault(model, "whisper-1"),
		Language: orDefault(language, "pt"),
		BaseURL:  openAITranscriptionsURL,
		Client:   client,
	}
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Transcribe(ctx context.Context, a Audio) (string, error) {
	if !config.Usable(w.APIKey) {
		return "", fmt.Errorf("%w: OPENAI_API_KEY not set", ErrUnavailable)
	}
	audioBytes.Add(float64(len(a.PCM)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "speech.wav")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if _, err := fw.Write(audio.EncodeWAV(a.PCM, a.Format)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	_ = mw.WriteField("model", w.Model)
	_ = mw.WriteField("language", w.Language)
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, orDefault(w.BaseURL, openAITranscriptionsURL), &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := clientOrDefault(w.Client).Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()
	if err := provider.CheckResponse(w.Name(), resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailed, err)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrFailed, err)
	}
	return strings.TrimSpace(out.Text), nil
}
