// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline implements the six-stage async transformation from a
// natural-language query to an organized PaperCollection: IntentParser,
// QueryBuilder, Searcher, Deduplicator, RelevanceScorer, ResultOrganizer
// (§4.3-§4.8).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/paper-search/internal/llm"
	"github.com/mesh-intelligence/paper-search/internal/llm/prompts"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// IntentParser turns a user's free-text research description into a
// ParsedIntent (§4.3).
type IntentParser struct {
	llm    llm.Provider
	domain string
}

// NewIntentParser constructs an IntentParser. domain selects an optional
// prompt specialization ("general" disables it).
func NewIntentParser(provider llm.Provider, domain string) *IntentParser {
	if domain == "" {
		domain = "general"
	}
	return &IntentParser{llm: provider, domain: domain}
}

func (p *IntentParser) composePrompt() string {
	domainConfig, ok := prompts.Get(p.domain)
	if !ok {
		return prompts.IntentParsing
	}
	return prompts.Compose(prompts.IntentParsing, &domainConfig)
}

// Parse extracts a ParsedIntent from userInput via the model client. A
// malformed or incomplete response surfaces as an error; the caller
// decides whether to retry or abort the run.
func (p *IntentParser) Parse(ctx context.Context, userInput string) (types.ParsedIntent, error) {
	system := p.composePrompt()
	result, err := p.llm.CompleteJSON(ctx, system, userInput, nil)
	if err != nil {
		return types.ParsedIntent{}, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return types.ParsedIntent{}, llm.ResponseError("could not re-marshal model response", fmt.Sprint(result))
	}

	var intent types.ParsedIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return types.ParsedIntent{}, llm.ResponseError("model response did not match ParsedIntent shape", string(raw))
	}
	if err := validateIntent(intent); err != nil {
		return types.ParsedIntent{}, err
	}
	return intent, nil
}

func validateIntent(intent types.ParsedIntent) error {
	if intent.Topic == "" {
		return llm.ResponseError("model response is missing required field \"topic\"", "")
	}
	if len(intent.Concepts) == 0 {
		return llm.ResponseError("model response is missing required field \"concepts\"", "")
	}
	switch intent.IntentType {
	case types.IntentSurvey, types.IntentMethod, types.IntentDataset, types.IntentBaseline:
	default:
		return llm.ResponseError(fmt.Sprintf("model response has invalid intent_type %q", intent.IntentType), "")
	}
	return nil
}
