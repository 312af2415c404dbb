package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
)

// Generator turns a prompt into contract text using a hosted model
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
}

// GenerationOptions are the sampling settings shared by all providers
type GenerationOptions struct {
	Temperature     float32
	MaxOutputTokens int
	HTTPClient      *http.Client
}

// NewGenerator builds the provider selected in cfg
func NewGenerator(ctx context.Context, cfg *config.GenerationConfig) (Generator, error) {
	provider, err := cfg.ActiveProvider()
	if err != nil {
		return nil, err
	}
	if !provider.HasKey() {
		return nil, fmt.Errorf("generation provider %q has no API key configured", cfg.Provider)
	}

	opts := GenerationOptions{
		Temperature:     cfg.SamplingTemperature(),
		MaxOutputTokens: cfg.MaxOutputTokens,
		HTTPClient:      NewCapturingClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}

	switch cfg.Provider {
	case config.ProviderDeepSeek:
		return NewDeepSeekGenerator(provider, opts), nil
	default:
		return NewGeminiGenerator(ctx, provider, opts)
	}
}

// NewCapturingClient returns an http.Client whose responses are recorded for
// requests whose context carries a capture. A zero timeout means none.
func NewCapturingClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &capturingTransport{base: http.DefaultTransport},
		Timeout:   timeout,
	}
}

type captureKey struct{}

// responseCapture records the last upstream status and, for non-2xx, the raw body
type responseCapture struct {
	mu     sync.Mutex
	status int
	body   []byte
}

func withCapture(ctx context.Context) (context.Context, *responseCapture) {
	c := &responseCapture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

func (c *responseCapture) snapshot() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, string(c.body)
}

// maxCapturedBody bounds how much of an error body is kept
const maxCapturedBody = 64 * 1024

type capturingTransport struct {
	base http.RoundTripper
}

func (t *capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	capture, ok := req.Context().Value(captureKey{}).(*responseCapture)
	if !ok {
		return resp, nil
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	capture.status = resp.StatusCode
	capture.body = nil
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCapturedBody))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read error response: %w", err)
	}
	capture.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// classifyProviderError turns an SDK error into GenerationServiceError or
// MalformedResponseError using what the transport saw.
func classifyProviderError(provider string, capture *responseCapture, err error) error {
	status, body := capture.snapshot()
	if status >= 200 && status < 300 {
		return &MalformedResponseError{Service: provider, Reason: err.Error()}
	}
	return &GenerationServiceError{Provider: provider, StatusCode: status, Body: body, Err: err}
}
