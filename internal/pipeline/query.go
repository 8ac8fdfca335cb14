// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/paper-search/internal/llm"
	"github.com/mesh-intelligence/paper-search/internal/llm/prompts"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// QueryBuilder turns a ParsedIntent (plus iteration history and feedback)
// into a SearchStrategy, falling back to a deterministic strategy when the
// model client fails or returns something unusable (§4.4).
type QueryBuilder struct {
	llm              llm.Provider
	domain           string
	availableSources []string
}

// NewQueryBuilder constructs a QueryBuilder restricted to availableSources.
func NewQueryBuilder(provider llm.Provider, domain string, availableSources []string) *QueryBuilder {
	if domain == "" {
		domain = "general"
	}
	return &QueryBuilder{llm: provider, domain: domain, availableSources: availableSources}
}

func (b *QueryBuilder) composePrompt() string {
	domainConfig, ok := prompts.Get(b.domain)
	if !ok {
		return prompts.QueryBuilding
	}
	return prompts.Compose(prompts.QueryBuilding, &domainConfig)
}

// Build produces a SearchStrategy for input. On any model or validation
// failure it returns a deterministic fallback strategy rather than
// propagating the error, so a single bad completion never aborts a run.
func (b *QueryBuilder) Build(ctx context.Context, input types.QueryBuilderInput) types.SearchStrategy {
	system := b.composePrompt()
	userMsg := formatQueryBuilderInput(input)

	result, err := b.llm.CompleteJSON(ctx, system, userMsg, nil)
	if err != nil {
		return b.sanitize(fallbackStrategy(input), input)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return b.sanitize(fallbackStrategy(input), input)
	}

	var strategy types.SearchStrategy
	if err := json.Unmarshal(raw, &strategy); err != nil || len(strategy.Queries) == 0 && len(strategy.Sources) == 0 {
		return b.sanitize(fallbackStrategy(input), input)
	}

	return b.sanitize(strategy, input)
}

func formatQueryBuilderInput(input types.QueryBuilderInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research topic: %s\n", input.Intent.Topic)
	fmt.Fprintf(&b, "Key concepts: %s\n", strings.Join(input.Intent.Concepts, ", "))
	fmt.Fprintf(&b, "Intent type: %s\n", input.Intent.IntentType)

	c := input.Intent.Constraints
	if c.YearFrom != nil || c.YearTo != nil || c.Language != "" || c.MaxResults != 0 {
		b.WriteString("Constraints:\n")
		if c.YearFrom != nil {
			fmt.Fprintf(&b, "  year_from: %d\n", *c.YearFrom)
		}
		if c.YearTo != nil {
			fmt.Fprintf(&b, "  year_to: %d\n", *c.YearTo)
		}
		if c.Language != "" {
			fmt.Fprintf(&b, "  language: %s\n", c.Language)
		}
		if c.MaxResults != 0 {
			fmt.Fprintf(&b, "  max_results: %d\n", c.MaxResults)
		}
	}

	if len(input.PreviousStrategies) > 0 {
		b.WriteString("\nPrevious strategies:\n")
		for i, prev := range input.PreviousStrategies {
			fmt.Fprintf(&b, "  Iteration %d:\n", i+1)
			for _, q := range prev.Queries {
				fmt.Fprintf(&b, "    - %s\n", q.BooleanQuery)
			}
		}
	}

	if fb := input.UserFeedback; fb != nil {
		b.WriteString("\nUser feedback:\n")
		if fb.FreeTextFeedback != "" {
			fmt.Fprintf(&b, "  %s\n", fb.FreeTextFeedback)
		}
		if len(fb.MarkedRelevant) > 0 {
			fmt.Fprintf(&b, "  marked relevant: %d papers\n", len(fb.MarkedRelevant))
		}
		if len(fb.MarkedIrrelevant) > 0 {
			fmt.Fprintf(&b, "  marked irrelevant: %d papers\n", len(fb.MarkedIrrelevant))
		}
	}

	return b.String()
}

// sanitize restricts sources to the configured set, repairs an inverted
// year range, clamps max_results into [1, 200], and guarantees at least
// one query.
func (b *QueryBuilder) sanitize(strategy types.SearchStrategy, input types.QueryBuilderInput) types.SearchStrategy {
	available := make(map[string]bool, len(b.availableSources))
	for _, s := range b.availableSources {
		available[s] = true
	}

	var restricted []string
	for _, s := range strategy.Sources {
		if available[s] {
			restricted = append(restricted, s)
		}
	}
	if len(restricted) == 0 {
		restricted = append([]string{}, b.availableSources...)
	}
	strategy.Sources = restricted

	if strategy.Filters.YearFrom != nil && strategy.Filters.YearTo != nil &&
		*strategy.Filters.YearFrom > *strategy.Filters.YearTo {
		strategy.Filters.YearFrom, strategy.Filters.YearTo = strategy.Filters.YearTo, strategy.Filters.YearFrom
	}

	switch {
	case strategy.Filters.MaxResults <= 0:
		strategy.Filters.MaxResults = 100
	case strategy.Filters.MaxResults > 200:
		strategy.Filters.MaxResults = 200
	}

	if len(strategy.Queries) == 0 {
		strategy.Queries = []types.SearchQuery{makeFallbackQuery(input)}
	}

	return strategy
}

// fallbackStrategy builds a deterministic strategy directly from the
// parsed intent, used when the model client is unavailable or returns
// something unusable.
func fallbackStrategy(input types.QueryBuilderInput) types.SearchStrategy {
	return types.SearchStrategy{
		Queries: []types.SearchQuery{makeFallbackQuery(input)},
		Filters: input.Intent.Constraints,
	}
}

func makeFallbackQuery(input types.QueryBuilderInput) types.SearchQuery {
	concepts := input.Intent.Concepts
	if len(concepts) == 0 {
		return types.SearchQuery{Keywords: []string{input.Intent.Topic}, BooleanQuery: input.Intent.Topic}
	}
	return types.SearchQuery{
		Keywords:     concepts,
		BooleanQuery: strings.Join(concepts, " AND "),
	}
}
