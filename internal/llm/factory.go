// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// NewProvider dispatches on cfg.Provider to construct the configured
// backend.
func NewProvider(ctx context.Context, cfg types.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case types.ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
	case types.ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
	case types.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
