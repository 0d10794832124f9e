// Package provider has the HTTP plumbing shared by vendor adapters.
package provider

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError represents a non-2xx response from a vendor API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// CheckResponse returns an *APIError for non-2xx responses, reading at most 1KB of body.
func CheckResponse(name string, resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{Provider: name, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
}

// NewHTTPClient returns a client with a whole-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// HeaderTransport adds fixed headers to every request.
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers map[string]string
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.Headers {
		r.Header.Set(k, v)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

var _ http.RoundTripper = (*HeaderTransport)(nil)
