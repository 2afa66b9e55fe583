package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/protocolzero/codepolice/internal/config"
)

const (
	anthropicMessagesEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicModelsEndpoint   = "https://api.anthropic.com/v1/models"
	anthropicVersionHeader    = "2023-06-01"
	anthropicDefaultModel     = "claude-sonnet-4-6"
)

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey       string
	model        string
	endpoint     string
	client       *http.Client
	debug        bool
	debugPrompts bool
}

// NewAnthropic creates an AnthropicProvider from cfg.
func NewAnthropic(cfg config.AIConfig) *AnthropicProvider {
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt") {
		model = anthropicDefaultModel
	}
	debug, prompts := parseAIDebugEnv()
	return &AnthropicProvider{
		apiKey:       cfg.AnthropicKey,
		model:        model,
		endpoint:     anthropicMessagesEndpoint,
		client:       &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
		debug:        debug,
		debugPrompts: prompts,
	}
}

func (c *AnthropicProvider) Name() string { return "anthropic" }

func (c *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	// #nosec G107 -- anthropicModelsEndpoint is a compile-time constant.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, anthropicModelsEndpoint, nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersionHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one Messages API request.
func (c *AnthropicProvider) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	payload := anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      in.System,
		Temperature: in.Temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: in.Prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling Anthropic request: %w", err)
	}

	if c.debug {
		slog.Debug("Anthropic request",
			"model", c.model,
			"temperature", in.Temperature,
			"prompt_chars", len(in.Prompt),
			"request_bytes", len(body),
		)
	}
	if c.debugPrompts {
		slog.Debug("Anthropic prompt", "prompt", in.Prompt)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating Anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersionHeader)
	req.Header.Set("content-type", "application/json")

	resp, err := c.client.Do(req) // #nosec G107 -- endpoint is a compile-time constant outside tests
	if err != nil {
		return "", fmt.Errorf("calling Anthropic API: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("reading Anthropic response body: %w", err)
	}
	if closeErr != nil && c.debug {
		slog.Debug("closing Anthropic response body", "error", closeErr)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "Anthropic", Code: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing Anthropic API response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("Anthropic error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("Anthropic returned no content")
	}

	return strings.TrimSpace(apiResp.Content[0].Text), nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
