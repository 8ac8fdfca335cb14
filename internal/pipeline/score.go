// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/mesh-intelligence/paper-search/internal/llm"
	"github.com/mesh-intelligence/paper-search/internal/llm/prompts"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

const (
	maxTitleLen   = 200
	maxSnippetLen = 500
)

// RelevanceScorer scores RawPaper records against a ParsedIntent in
// batches, using bounded concurrency across batches (§4.7).
type RelevanceScorer struct {
	llm            llm.Provider
	batchSize      int
	maxConcurrency int
}

// NewRelevanceScorer constructs a RelevanceScorer.
func NewRelevanceScorer(provider llm.Provider, batchSize, maxConcurrency int) *RelevanceScorer {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &RelevanceScorer{llm: provider, batchSize: batchSize, maxConcurrency: maxConcurrency}
}

// Score annotates every paper with a relevance score, reason, and tags.
// Batch order is preserved in the output regardless of how batches
// complete concurrently.
func (s *RelevanceScorer) Score(ctx context.Context, papers []types.RawPaper, intent types.ParsedIntent) []types.ScoredPaper {
	if len(papers) == 0 {
		return nil
	}

	batches := s.makeBatches(papers)
	if len(batches) <= 1 || s.maxConcurrency == 1 {
		var all []types.ScoredPaper
		for _, batch := range batches {
			all = append(all, s.scoreBatch(ctx, batch, intent)...)
		}
		return all
	}

	slog.Info("scoring papers in batches", "papers", len(papers), "batches", len(batches), "concurrency", s.maxConcurrency)

	p := pool.NewWithResults[[]types.ScoredPaper]().WithMaxGoroutines(s.maxConcurrency)
	for _, batch := range batches {
		batch := batch
		p.Go(func() []types.ScoredPaper {
			return s.scoreBatch(ctx, batch, intent)
		})
	}

	var all []types.ScoredPaper
	for _, scored := range p.Wait() {
		all = append(all, scored...)
	}
	return all
}

func (s *RelevanceScorer) makeBatches(papers []types.RawPaper) [][]types.RawPaper {
	var batches [][]types.RawPaper
	for i := 0; i < len(papers); i += s.batchSize {
		end := i + s.batchSize
		if end > len(papers) {
			end = len(papers)
		}
		batches = append(batches, papers[i:end])
	}
	return batches
}

func (s *RelevanceScorer) scoreBatch(ctx context.Context, batch []types.RawPaper, intent types.ParsedIntent) []types.ScoredPaper {
	userMsg := formatScoringBatch(batch, intent)
	t0 := time.Now()

	result, err := s.llm.CompleteJSON(ctx, prompts.RelevanceScoring, userMsg, nil)
	if err != nil {
		slog.Warn("scoring batch failed, using defaults", "elapsed", time.Since(t0), "error", err)
		return defaultScores(batch)
	}

	slog.Info("scored batch", "papers", len(batch), "elapsed", time.Since(t0))
	return parseScores(batch, result)
}

func formatScoringBatch(batch []types.RawPaper, intent types.ParsedIntent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research topic: %s\n", intent.Topic)
	fmt.Fprintf(&b, "Key concepts: %s\n\n", strings.Join(intent.Concepts, ", "))
	b.WriteString("Papers to score:\n")

	for _, p := range batch {
		title := truncateRunes(p.Title, maxTitleLen)
		snippet := truncateRunes(p.Snippet, maxSnippetLen)
		fmt.Fprintf(&b, "- ID: %s\n", p.ID)
		fmt.Fprintf(&b, "  Title: %s\n", title)
		if snippet != "" {
			fmt.Fprintf(&b, "  Snippet: %s\n", snippet)
		}
		if p.Year != nil {
			fmt.Fprintf(&b, "  Year: %d\n", *p.Year)
		}
		if p.Venue != "" {
			fmt.Fprintf(&b, "  Venue: %s\n", p.Venue)
		}
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

type scoreResultItem struct {
	PaperID         string   `json:"paper_id"`
	RelevanceScore  float64  `json:"relevance_score"`
	RelevanceReason string   `json:"relevance_reason"`
	Tags            []string `json:"tags"`
}

func parseScores(batch []types.RawPaper, result map[string]any) []types.ScoredPaper {
	byID := make(map[string]types.RawPaper, len(batch))
	for _, p := range batch {
		byID[p.ID] = p
	}

	raw, err := json.Marshal(result["results"])
	var items []scoreResultItem
	if err == nil {
		_ = json.Unmarshal(raw, &items)
	}

	scored := make(map[string]types.ScoredPaper, len(items))
	for _, item := range items {
		paper, ok := byID[item.PaperID]
		if !ok {
			continue
		}
		if _, already := scored[item.PaperID]; already {
			continue
		}

		tags := make([]types.PaperTag, 0, len(item.Tags))
		for _, t := range item.Tags {
			tags = append(tags, types.PaperTag(t))
		}

		scored[item.PaperID] = types.ScoredPaper{
			Paper:           paper,
			RelevanceScore:  types.ClampScore(item.RelevanceScore),
			RelevanceReason: item.RelevanceReason,
			Tags:            types.FilterValidTags(tags),
		}
	}

	out := make([]types.ScoredPaper, 0, len(batch))
	for _, p := range batch {
		if sp, ok := scored[p.ID]; ok {
			out = append(out, sp)
		} else {
			out = append(out, defaultScore(p))
		}
	}
	return out
}

func defaultScores(batch []types.RawPaper) []types.ScoredPaper {
	out := make([]types.ScoredPaper, len(batch))
	for i, p := range batch {
		out[i] = defaultScore(p)
	}
	return out
}

func defaultScore(p types.RawPaper) types.ScoredPaper {
	return types.ScoredPaper{
		Paper:           p,
		RelevanceScore:  0,
		RelevanceReason: "Scoring unavailable",
	}
}
