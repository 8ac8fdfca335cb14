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
	"sync"
	"time"
)

// OpenAIProvider implements Provider over OpenAI's chat completions API.
// No Go SDK for OpenAI is available anywhere in the reference corpus; this
// hand-rolled REST client mirrors the shape of the hand-rolled Anthropic
// client it sits beside, one JSON-struct-and-http.Client pair per backend.
type OpenAIProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewOpenAIProvider constructs an OpenAIProvider. baseURL defaults to the
// public API when empty.
func NewOpenAIProvider(apiKey, baseURL, model string, temperature float64, maxTokens int) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	return p.complete(ctx, system, user, false)
}

func (p *OpenAIProvider) CompleteJSON(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error) {
	text, err := p.complete(ctx, system, user, true)
	if err != nil {
		return nil, err
	}
	return ExtractJSON(text)
}

func (p *OpenAIProvider) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	if p.apiKey == "" {
		return "", AuthError("OpenAI API key not configured")
	}

	p.rateGate()

	var messages []openAIMessage
	if system != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: user})

	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	if jsonMode {
		reqBody.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", GenericError(fmt.Sprintf("marshaling request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", GenericError(fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		return "", GenericError(fmt.Sprintf("OpenAI API HTTP %d: %s", resp.StatusCode, respBody))
	}

	var out openAIResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", ResponseError("unparseable OpenAI response", string(respBody))
	}
	if out.Error != nil {
		return "", GenericError(out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// rateGate enforces at least 200ms between this client's outbound
// requests, using a mutex-guarded lastRequest time.
func (p *OpenAIProvider) rateGate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	const minInterval = 200 * time.Millisecond
	elapsed := time.Since(p.lastRequest)
	if elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	p.lastRequest = time.Now()
}
