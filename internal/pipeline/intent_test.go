// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mesh-intelligence/paper-search/internal/llm"
	"github.com/mesh-intelligence/paper-search/internal/llm/prompts"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

type mockLLM struct {
	response map[string]any
	err      error

	mu       sync.Mutex
	lastUser string
	calls    atomic.Int64
}

func (m *mockLLM) Complete(ctx context.Context, system, user string) (string, error) {
	return "", nil
}

func (m *mockLLM) CompleteJSON(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastUser = user
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestIntentParser_ParseEnglishInput(t *testing.T) {
	mock := &mockLLM{response: map[string]any{
		"topic":       "LLM applications in medical imaging diagnosis",
		"concepts":    []any{"large language model", "medical imaging", "diagnosis"},
		"intent_type": "method",
		"constraints": map[string]any{"max_results": 50},
	}}
	parser := NewIntentParser(mock, "general")
	intent, err := parser.Parse(context.Background(), "LLM applications in medical imaging")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if intent.IntentType != types.IntentMethod {
		t.Errorf("IntentType = %q, want %q", intent.IntentType, types.IntentMethod)
	}
	if intent.Constraints.MaxResults != 50 {
		t.Errorf("MaxResults = %d, want 50", intent.Constraints.MaxResults)
	}
}

func TestIntentParser_MalformedResponse(t *testing.T) {
	mock := &mockLLM{err: llm.ResponseError("could not extract JSON object from model response", "not json at all")}
	parser := NewIntentParser(mock, "general")
	_, err := parser.Parse(context.Background(), "some query")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestIntentParser_MissingRequiredFields(t *testing.T) {
	mock := &mockLLM{response: map[string]any{"topic": "test"}}
	parser := NewIntentParser(mock, "general")
	_, err := parser.Parse(context.Background(), "some query")
	if err == nil {
		t.Fatal("expected an error for missing concepts/intent_type")
	}
}

func TestIntentParser_ComposePrompt(t *testing.T) {
	tests := []struct {
		name           string
		domain         string
		wantContains   string
		wantLongerThan bool
	}{
		{"general domain", "general", "", false},
		{"unknown domain falls back", "unknown_xyz", "", false},
		{"materials science domain", "materials_science", "material families", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewIntentParser(&mockLLM{}, tt.domain)
			prompt := parser.composePrompt()
			if tt.wantContains != "" {
				if !strings.Contains(prompt, tt.wantContains) {
					t.Errorf("prompt missing %q", tt.wantContains)
				}
				if tt.wantLongerThan && len(prompt) <= len(prompts.IntentParsing) {
					t.Error("expected domain-specialized prompt to be longer than base")
				}
			}
		})
	}
}
