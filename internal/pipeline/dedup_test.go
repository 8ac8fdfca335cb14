// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"testing"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

func dedupPaper(id, title string, opts ...func(*types.RawPaper)) types.RawPaper {
	p := types.RawPaper{ID: id, Title: title, Source: "test"}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func withDOI(doi string) func(*types.RawPaper) { return func(p *types.RawPaper) { p.DOI = doi } }
func withResultID(rid string) func(*types.RawPaper) {
	return func(p *types.RawPaper) {
		if p.RawData == nil {
			p.RawData = map[string]any{}
		}
		p.RawData["result_id"] = rid
	}
}
func withURL(url string) func(*types.RawPaper) { return func(p *types.RawPaper) { p.FullTextURL = url } }
func withYear(y int) func(*types.RawPaper)      { return func(p *types.RawPaper) { p.Year = &y } }
func withSnippet(s string) func(*types.RawPaper) {
	return func(p *types.RawPaper) { p.Snippet = s }
}
func withCitations(c int) func(*types.RawPaper) {
	return func(p *types.RawPaper) { p.CitationCount = c }
}

func TestDeduplicator_AlgorithmPass(t *testing.T) {
	tests := []struct {
		name   string
		papers []types.RawPaper
		want   int
	}{
		{
			"dedup by doi, case-insensitive",
			[]types.RawPaper{
				dedupPaper("a", "Paper A", withDOI("10.1234/A")),
				dedupPaper("b", "Paper B Different Title", withDOI("10.1234/a")),
			},
			1,
		},
		{
			"dedup by result_id",
			[]types.RawPaper{
				dedupPaper("a", "Paper A", withResultID("RID123")),
				dedupPaper("b", "Paper A Copy", withResultID("RID123")),
			},
			1,
		},
		{
			"dedup by url",
			[]types.RawPaper{
				dedupPaper("a", "Paper A", withURL("https://example.com/paper1")),
				dedupPaper("b", "Paper B", withURL("https://example.com/paper1")),
			},
			1,
		},
		{
			"dedup by normalized title",
			[]types.RawPaper{
				dedupPaper("a", "  Effect of Temperature on Steel  "),
				dedupPaper("b", "effect of temperature on steel"),
			},
			1,
		},
		{
			"no false positive",
			[]types.RawPaper{
				dedupPaper("a", "Paper About LLM"),
				dedupPaper("b", "Paper About Robotics"),
			},
			2,
		},
	}

	dedup := NewDeduplicator(nil, true, 60)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := dedup.Deduplicate(context.Background(), tt.papers)
			if len(result) != tt.want {
				t.Errorf("len(result) = %d, want %d", len(result), tt.want)
			}
		})
	}
}

func TestDeduplicator_Empty(t *testing.T) {
	dedup := NewDeduplicator(nil, true, 60)
	result := dedup.Deduplicate(context.Background(), nil)
	if len(result) != 0 {
		t.Errorf("expected empty result, got %v", result)
	}
}

func TestDeduplicator_Single(t *testing.T) {
	dedup := NewDeduplicator(nil, true, 60)
	result := dedup.Deduplicate(context.Background(), []types.RawPaper{dedupPaper("solo", "Solo Paper")})
	if len(result) != 1 || result[0].ID != "solo" {
		t.Errorf("result = %v", result)
	}
}

func TestDeduplicator_LLMGroupsDuplicates(t *testing.T) {
	a := dedupPaper("a", "Impact of LLM on Radiology", withYear(2023))
	b := dedupPaper("b", "Large Language Models in Radiological Diagnosis", withYear(2023))
	c := dedupPaper("c", "Unrelated Steel Paper", withYear(2020))

	mock := &mockLLM{response: map[string]any{
		"groups":  []any{[]any{"a", "b"}},
		"singles": []any{"c"},
	}}
	dedup := NewDeduplicator(mock, true, 60)
	result := dedup.Deduplicate(context.Background(), []types.RawPaper{a, b, c})
	if len(result) != 2 {
		t.Errorf("len(result) = %d, want 2 (1 merged + 1 single)", len(result))
	}
}

func TestDeduplicator_LLMFailureGraceful(t *testing.T) {
	a := dedupPaper("a", "Paper A")
	b := dedupPaper("b", "Paper B")

	mock := &mockLLM{err: assertErr("API down")}
	dedup := NewDeduplicator(mock, true, 60)
	result := dedup.Deduplicate(context.Background(), []types.RawPaper{a, b})
	if len(result) != 2 {
		t.Errorf("len(result) = %d, want 2", len(result))
	}
}

func TestDeduplicator_NoLLMMode(t *testing.T) {
	a := dedupPaper("a", "Paper A")
	b := dedupPaper("b", "Paper B")

	dedup := NewDeduplicator(nil, true, 60)
	result := dedup.Deduplicate(context.Background(), []types.RawPaper{a, b})
	if len(result) != 2 {
		t.Errorf("len(result) = %d, want 2", len(result))
	}
}

func TestDeduplicator_SkipLLMPassOverCandidateLimit(t *testing.T) {
	var papers []types.RawPaper
	for i := 0; i < 3; i++ {
		papers = append(papers, dedupPaper(string(rune('a'+i)), "Unique "+string(rune('a'+i))))
	}
	mock := &mockLLM{response: map[string]any{"groups": []any{}}}
	dedup := NewDeduplicator(mock, true, 2)
	result := dedup.Deduplicate(context.Background(), papers)

	if len(result) != 3 {
		t.Errorf("len(result) = %d, want 3", len(result))
	}
}

func TestDeduplicator_DisableLLMPass(t *testing.T) {
	a := dedupPaper("a", "Paper A")
	b := dedupPaper("b", "Paper B")
	mock := &mockLLM{response: map[string]any{"groups": []any{[]any{"a", "b"}}}}
	dedup := NewDeduplicator(mock, false, 60)
	result := dedup.Deduplicate(context.Background(), []types.RawPaper{a, b})

	if len(result) != 2 {
		t.Errorf("len(result) = %d, want 2 (LLM pass disabled)", len(result))
	}
}

func TestDeduplicator_MergeRichestRecord(t *testing.T) {
	a := dedupPaper("a", "Same Title", withSnippet("short"), withCitations(5))
	b := dedupPaper("b", "Same Title", withDOI("10.1234/x"), withSnippet("much longer snippet detail"), withCitations(10))

	dedup := NewDeduplicator(nil, true, 60)
	result := dedup.Deduplicate(context.Background(), []types.RawPaper{a, b})
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1", len(result))
	}
	merged := result[0]
	if merged.DOI != "10.1234/x" {
		t.Errorf("DOI = %q, want %q", merged.DOI, "10.1234/x")
	}
	if merged.CitationCount != 10 {
		t.Errorf("CitationCount = %d, want 10", merged.CitationCount)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Hello, World!  ", "hello world"},
		{"A.B-C:D", "abcd"},
		{"a   b\tc", "a b c"},
	}
	for _, tt := range tests {
		if got := normalizeTitle(tt.in); got != tt.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTitle_Idempotent(t *testing.T) {
	title := "Effect of Temperature on Steel"
	once := normalizeTitle(title)
	twice := normalizeTitle(once)
	if once != twice {
		t.Errorf("normalizeTitle not idempotent: %q != %q", once, twice)
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(msg string) error { return simpleErr(msg) }
