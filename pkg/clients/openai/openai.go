// Package openai implements the language-model protocol against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	requestTimeout = 60 * time.Second
)

// Client calls a chat completions API. The zero value is not usable; build
// it with NewClient.
type Client struct {
	logger     *slog.Logger
	httpClient protocol.HTTPDoer
	baseURL    string
	apiKey     string
	model      string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default endpoint, e.g. a local
// OpenAI-compatible server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithModel overrides the default model for calls that do not name one.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient protocol.HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(logger *slog.Logger, apiKey string, opts ...Option) *Client {
	client := &Client{
		logger:     logger.With("module", "openai_client"),
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		model:      DefaultModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate performs one chat completion call.
func (c *Client) Generate(ctx context.Context, prompt string, opts protocol.ModelOptions) (*protocol.Completion, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	messages := make([]chatMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}

	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("model API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("model API returned status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("model API returned no choices")
	}

	c.logger.DebugContext(ctx, "Completion finished",
		"model", parsed.Model,
		"tokens_used", parsed.Usage.TotalTokens)

	return &protocol.Completion{
		Text:       parsed.Choices[0].Message.Content,
		Model:      parsed.Model,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
