// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/mesh-intelligence/paper-search/internal/llm"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

var testIntent = types.ParsedIntent{
	Topic:      "LLM in medical imaging",
	Concepts:   []string{"LLM", "medical imaging", "diagnosis"},
	IntentType: types.IntentSurvey,
	Constraints: types.Constraints{
		YearFrom: intPtr(2020),
	},
}

func intPtr(i int) *int { return &i }

func validStrategyResponse() map[string]any {
	return map[string]any{
		"queries": []any{
			map[string]any{
				"keywords":      []any{"LLM", "medical imaging"},
				"boolean_query": "(LLM OR large language model) AND medical imaging",
			},
		},
		"sources": []any{"serpapi_scholar"},
		"filters": map[string]any{"year_from": 2020.0, "max_results": 100.0},
	}
}

func TestQueryBuilder_BuildBasic(t *testing.T) {
	mock := &mockLLM{response: validStrategyResponse()}
	builder := NewQueryBuilder(mock, "general", []string{"serpapi_scholar"})
	result := builder.Build(context.Background(), types.QueryBuilderInput{Intent: testIntent})

	if len(result.Queries) < 1 {
		t.Fatal("expected at least one query")
	}
	if len(result.Sources) != 1 || result.Sources[0] != "serpapi_scholar" {
		t.Errorf("Sources = %v", result.Sources)
	}
	if result.Queries[0].BooleanQuery == "" {
		t.Error("expected a non-empty boolean_query")
	}
}

func TestQueryBuilder_IterationContextInUserMessage(t *testing.T) {
	mock := &mockLLM{response: validStrategyResponse()}
	builder := NewQueryBuilder(mock, "general", []string{"serpapi_scholar"})

	prevStrategy := types.SearchStrategy{
		Queries: []types.SearchQuery{{Keywords: []string{"old"}, BooleanQuery: "old query"}},
		Sources: []string{"serpapi_scholar"},
	}
	feedback := &types.UserFeedback{
		MarkedRelevant:   map[string]bool{"paper1": true},
		FreeTextFeedback: "Need more focus on radiology",
	}

	builder.Build(context.Background(), types.QueryBuilderInput{
		Intent:             testIntent,
		PreviousStrategies: []types.SearchStrategy{prevStrategy},
		UserFeedback:       feedback,
	})

	if !strings.Contains(mock.lastUser, "Previous strategies") {
		t.Error("expected user message to mention previous strategies")
	}
	if !strings.Contains(mock.lastUser, "old query") {
		t.Error("expected user message to include the previous boolean query")
	}
	if !strings.Contains(mock.lastUser, "radiology") {
		t.Error("expected user message to include free-text feedback")
	}
}

func TestQueryBuilder_SourceRestriction(t *testing.T) {
	resp := validStrategyResponse()
	resp["sources"] = []any{"semantic_scholar", "pubmed", "serpapi_scholar"}
	mock := &mockLLM{response: resp}
	builder := NewQueryBuilder(mock, "general", []string{"serpapi_scholar"})
	result := builder.Build(context.Background(), types.QueryBuilderInput{Intent: testIntent})

	if len(result.Sources) != 1 || result.Sources[0] != "serpapi_scholar" {
		t.Errorf("Sources = %v, want only serpapi_scholar", result.Sources)
	}
}

func TestQueryBuilder_SourceRestrictionAllUnavailableFallsBack(t *testing.T) {
	resp := validStrategyResponse()
	resp["sources"] = []any{"semantic_scholar"}
	mock := &mockLLM{response: resp}
	builder := NewQueryBuilder(mock, "general", []string{"serpapi_scholar"})
	result := builder.Build(context.Background(), types.QueryBuilderInput{Intent: testIntent})

	if len(result.Sources) != 1 || result.Sources[0] != "serpapi_scholar" {
		t.Errorf("Sources = %v, want fallback to available sources", result.Sources)
	}
}

func TestQueryBuilder_FallbackOnLLMError(t *testing.T) {
	mock := &mockLLM{err: llm.GenericError("API down")}
	builder := NewQueryBuilder(mock, "general", []string{"serpapi_scholar"})
	result := builder.Build(context.Background(), types.QueryBuilderInput{Intent: testIntent})

	if len(result.Queries) != 1 {
		t.Fatalf("len(Queries) = %d, want 1", len(result.Queries))
	}
	if !strings.Contains(result.Queries[0].BooleanQuery, "LLM") {
		t.Errorf("boolean_query = %q, want to contain concepts", result.Queries[0].BooleanQuery)
	}
	if result.Filters.YearFrom == nil || *result.Filters.YearFrom != 2020 {
		t.Errorf("YearFrom = %v, want 2020", result.Filters.YearFrom)
	}
}

func TestQueryBuilder_SanitizeYearRange(t *testing.T) {
	resp := validStrategyResponse()
	resp["filters"] = map[string]any{"year_from": 2025.0, "year_to": 2020.0, "max_results": 100.0}
	mock := &mockLLM{response: resp}
	builder := NewQueryBuilder(mock, "general", []string{"serpapi_scholar"})
	result := builder.Build(context.Background(), types.QueryBuilderInput{Intent: testIntent})

	if result.Filters.YearFrom == nil || *result.Filters.YearFrom != 2020 {
		t.Errorf("YearFrom = %v, want 2020", result.Filters.YearFrom)
	}
	if result.Filters.YearTo == nil || *result.Filters.YearTo != 2025 {
		t.Errorf("YearTo = %v, want 2025", result.Filters.YearTo)
	}
}

func TestQueryBuilder_SanitizeEmptyQueries(t *testing.T) {
	resp := validStrategyResponse()
	resp["queries"] = []any{}
	mock := &mockLLM{response: resp}
	builder := NewQueryBuilder(mock, "general", []string{"serpapi_scholar"})
	result := builder.Build(context.Background(), types.QueryBuilderInput{Intent: testIntent})

	if len(result.Queries) < 1 {
		t.Error("expected a fallback query to be added")
	}
}

func TestQueryBuilder_ComposePrompt(t *testing.T) {
	general := NewQueryBuilder(&mockLLM{}, "general", nil).composePrompt()
	materials := NewQueryBuilder(&mockLLM{}, "materials_science", nil).composePrompt()
	if !strings.HasPrefix(materials, general) {
		t.Error("expected materials_science prompt to extend the general prompt")
	}
	if !strings.Contains(materials, "material families") {
		t.Error("expected materials_science prompt to mention material families")
	}
}
