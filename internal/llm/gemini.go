// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider over the real google.golang.org/genai
// SDK, the one backend in this taxonomy with an actual Go client available
// in the reference corpus (theRebelliousNerd-codenerd already depends on
// it for embeddings).
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGeminiProvider constructs a GeminiProvider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, temperature float64, maxTokens int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, AuthError("Gemini API key not configured")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, GenericError(fmt.Sprintf("creating genai client: %v", err))
	}
	return &GeminiProvider{client: client, model: model, temperature: temperature, maxTokens: maxTokens}, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, system, user string) (string, error) {
	return p.generate(ctx, system, user, "", nil)
}

func (p *GeminiProvider) CompleteJSON(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error) {
	text, err := p.generate(ctx, system, user, "application/json", schema)
	if err != nil {
		return nil, err
	}
	return ExtractJSON(text)
}

func (p *GeminiProvider) generate(ctx context.Context, system, user, mimeType string, schema map[string]any) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.temperature)),
		MaxOutputTokens: int32(p.maxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	// mimeType/schema are set only when the caller needs structured JSON
	// output, matching the Python gemini_provider's "only if schema is not
	// None" behavior.
	if mimeType != "" {
		cfg.ResponseMIMEType = mimeType
	}
	if schema != nil {
		cfg.ResponseSchema = toGenaiSchema(schema)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		if isGeminiAuthErr(err) {
			return "", AuthError(err.Error())
		}
		if isGeminiRateLimitErr(err) {
			return "", RateLimitError(err.Error())
		}
		return "", GenericError(err.Error())
	}

	return strings.TrimSpace(resp.Text()), nil
}

func toGenaiSchema(schema map[string]any) *genai.Schema {
	// The Python reference passes its schema dict straight through as a
	// response_schema hint; the genai SDK wants a typed *genai.Schema.
	// The schema argument is not translated: every call gets a bare
	// object schema with no properties, so the response is only
	// constrained to be a JSON object.
	return &genai.Schema{Type: genai.TypeObject}
}

func isGeminiAuthErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission")
}

func isGeminiRateLimitErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource_exhausted")
}
