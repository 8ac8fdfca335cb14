// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// jsonInstruction is appended to the system prompt when CompleteJSON is
// called, since the Anthropic Messages API has no native JSON-object mode.
const jsonInstruction = "\n\nRespond with a single JSON object only. Do not include any text outside the JSON object."

// AnthropicProvider implements Provider over the Anthropic Messages API.
// Hand-rolled for the same reason as OpenAIProvider: no real Go SDK for
// Anthropic is present anywhere in the reference corpus.
type AnthropicProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewAnthropicProvider constructs an AnthropicProvider.
func NewAnthropicProvider(apiKey, baseURL, model string, temperature float64, maxTokens int) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &AnthropicProvider{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	return p.complete(ctx, system, user)
}

func (p *AnthropicProvider) CompleteJSON(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error) {
	text, err := p.complete(ctx, system+jsonInstruction, user)
	if err != nil {
		return nil, err
	}
	return ExtractJSON(text)
}

func (p *AnthropicProvider) complete(ctx context.Context, system, user string) (string, error) {
	if p.apiKey == "" {
		return "", AuthError("Anthropic API key not configured")
	}

	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    system,
		Messages: []anthropicMessage{
			{Role: "user", Content: user},
		},
		Temperature: p.temperature,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", GenericError(fmt.Sprintf("marshaling request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", GenericError(fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", GenericError(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", GenericError(fmt.Sprintf("reading response: %v", err))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", AuthError(string(respBody))
	case http.StatusTooManyRequests:
		return "", RateLimitError(string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return "", GenericError(fmt.Sprintf("Anthropic API HTTP %d: %s", resp.StatusCode, respBody))
	}

	var out anthropicResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", ResponseError("unparseable Anthropic response", string(respBody))
	}
	if out.Error != nil {
		return "", GenericError(out.Error.Message)
	}

	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
