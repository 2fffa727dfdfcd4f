package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	retry       RetryConfig
	httpClient  *http.Client
	logger      *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIGenerator creates a generator. An empty baseURL targets api.openai.com.
func NewOpenAIGenerator(baseURL, apiKey, model string, temperature float64, maxTokens int, retry RetryConfig, httpClient *http.Client, logger *zap.Logger) *OpenAIGenerator {
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIGenerator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		retry:       retry,
		httpClient:  httpClient,
		logger:      utils.OrNop(logger),
	}
}

// Model returns the model name.
func (g *OpenAIGenerator) Model() string { return g.model }

// Complete posts a chat completion and returns the first choice.
func (g *OpenAIGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		TopP:        0.9,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	resp, err := doWithRetry(ctx, g.retry, g.logger, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.apiKey)
		}
		return g.httpClient.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %v: %w", err, models.ErrProvider)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat completion returned %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(msg)), models.ErrProvider)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat completion: %v: %w", err, models.ErrProvider)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion has no choices: %w", models.ErrProvider)
	}
	return out.Choices[0].Message.Content, nil
}
