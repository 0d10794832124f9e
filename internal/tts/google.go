package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"coringa/voicebot/internal/provider"
)

const (
	googleTranslateHost = "https://translate.google.com"
	googleMaxChars      = 200
	googleSplitPunct    = ",.?!"
)

// GoogleTranslate uses the public translate_tts endpoint. It needs no key and
// accepts at most 200 characters per request, so longer text is split.
type GoogleTranslate struct {
	Lang    string
	Host    string
	Client  *http.Client
	Scratch *Scratch
}

func NewGoogleTranslate(lang string, client *http.Client, scratch *Scratch) *GoogleTranslate {
	return &GoogleTranslate{Lang: orDefault(lang, "pt-BR"), Host: googleTranslateHost, Client: client, Scratch: scratch}
}

func (g *GoogleTranslate) Name() string { return "google" }

func (g *GoogleTranslate) Synthesize(ctx context.Context, text string) (string, error) {
	parts := splitText(text, googleMaxChars)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: empty text", ErrFailed)
	}
	var buf bytes.Buffer
	for i, p := range parts {
		if err := g.fetch(ctx, p, i, len(parts), &buf); err != nil {
			return "", err
		}
	}
	path, err := g.Scratch.Write(".mp3", buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return path, nil
}

func (g *GoogleTranslate) fetch(ctx context.Context, text string, idx, total int, w io.Writer) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", g.Lang)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))
	q.Set("client", "tw-ob")
	q.Set("prev", "input")
	q.Set("ttsspeed", "1")
	u := strings.TrimRight(orDefault(g.Host, googleTranslateHost), "/") + "/translate_tts?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	resp, err := clientOrDefault(g.Client).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()
	if err := provider.CheckResponse(g.Name(), resp); err != nil {
		return fmt.Errorf("%w: %w", ErrFailed, err)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read segment %d: %v", ErrFailed, idx, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: empty segment %d", ErrFailed, idx)
	}
	return nil
}

// splitText cuts text into segments of at most max runes, preferring to break
// after punctuation, then at a space, and only then mid-word.
func splitText(text string, max int) []string {
	var out []string
	rest := []rune(strings.TrimSpace(text))
	for len(rest) > 0 {
		if len(rest) <= max {
			out = append(out, string(rest))
			break
		}
		cut := -1
		for i := max - 1; i > 0; i-- {
			if strings.ContainsRune(googleSplitPunct, rest[i]) {
				cut = i + 1
				break
			}
		}
		if cut < 0 {
			for i := max; i > 0; i-- {
				if rest[i] == ' ' {
					cut = i
					break
				}
			}
		}
		if cut <= 0 {
			cut = max
		}
		seg := strings.TrimSpace(string(rest[:cut]))
		if seg != "" {
			out = append(out, seg)
		}
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}
	return out
}
