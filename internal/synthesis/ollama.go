package synthesis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/hyperjump/kotae/internal/models"
)

// OllamaGenerator completes prompts with a local Ollama chat model.
type OllamaGenerator struct {
	client      *api.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOllamaGenerator creates a generator for the Ollama server at baseURL.
func NewOllamaGenerator(baseURL, model string, temperature float64, maxTokens int, httpClient *http.Client) (*OllamaGenerator, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, models.ErrValidation)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaGenerator{
		client:      api.NewClient(u, httpClient),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Model returns the model name.
func (g *OllamaGenerator) Model() string { return g.model }

// Complete sends one non-streaming chat request.
func (g *OllamaGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	stream := false
	options := map[string]any{"temperature": g.temperature}
	if g.maxTokens > 0 {
		options["num_predict"] = g.maxTokens
	}
	req := &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Options: options,
		Stream:  &stream,
	}

	var b strings.Builder
	err := g.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %v: %w", err, models.ErrProvider)
	}
	return b.String(), nil
}
