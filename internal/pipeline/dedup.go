// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/paper-search/internal/llm"
	"github.com/mesh-intelligence/paper-search/internal/llm/prompts"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

var (
	dedupPunctRE = regexp.MustCompile(`[^\w\s]`)
	dedupSpaceRE = regexp.MustCompile(`\s+`)
)

// Deduplicator merges RawPaper records that refer to the same work,
// combining an exact-match algorithm pass with an optional bounded LLM
// semantic pass (§4.6).
type Deduplicator struct {
	llm              llm.Provider
	enableLLMPass    bool
	llmMaxCandidates int
}

// NewDeduplicator constructs a Deduplicator. A nil provider disables the
// LLM pass regardless of enableLLMPass.
func NewDeduplicator(provider llm.Provider, enableLLMPass bool, llmMaxCandidates int) *Deduplicator {
	if llmMaxCandidates < 2 {
		llmMaxCandidates = 2
	}
	return &Deduplicator{llm: provider, enableLLMPass: enableLLMPass, llmMaxCandidates: llmMaxCandidates}
}

// Deduplicate removes duplicate papers, keeping the richest record of
// each duplicate group.
func (d *Deduplicator) Deduplicate(ctx context.Context, papers []types.RawPaper) []types.RawPaper {
	if len(papers) <= 1 {
		return papers
	}

	groups, ungrouped := algorithmPass(papers)

	if d.llm != nil && d.enableLLMPass {
		switch {
		case len(ungrouped) > 1 && len(ungrouped) <= d.llmMaxCandidates:
			llmGroups, remaining := d.llmPass(ctx, ungrouped)
			groups = append(groups, llmGroups...)
			ungrouped = remaining
		case len(ungrouped) > d.llmMaxCandidates:
			slog.Info("skipping LLM dedup pass, too many candidates", "candidates", len(ungrouped), "limit", d.llmMaxCandidates)
		}
	}

	result := make([]types.RawPaper, 0, len(groups)+len(ungrouped))
	for _, g := range groups {
		result = append(result, mergeGroup(g))
	}
	result = append(result, ungrouped...)
	return result
}

// algorithmPass groups papers via union-find across four ordered key
// passes: DOI, source result_id, full_text_url, normalized title.
func algorithmPass(papers []types.RawPaper) (groups [][]types.RawPaper, ungrouped []types.RawPaper) {
	parent := make(map[string]string, len(papers))
	index := make(map[string]types.RawPaper, len(papers))
	for i, p := range papers {
		id := paperKey(p, i)
		parent[id] = id
		index[id] = p
	}

	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = paperKey(p, i)
	}

	var find func(string) string
	find = func(id string) string {
		for parent[id] != id {
			parent[id] = parent[parent[id]]
			id = parent[id]
		}
		return id
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	unionByKey := func(key func(types.RawPaper) (string, bool)) {
		seen := make(map[string]string)
		for i, p := range papers {
			k, ok := key(p)
			if !ok {
				continue
			}
			id := ids[i]
			if other, exists := seen[k]; exists {
				union(id, other)
			} else {
				seen[k] = id
			}
		}
	}

	unionByKey(func(p types.RawPaper) (string, bool) {
		if p.DOI == "" {
			return "", false
		}
		return strings.ToLower(strings.TrimSpace(p.DOI)), true
	})
	unionByKey(func(p types.RawPaper) (string, bool) {
		rid, ok := p.RawData["result_id"]
		if !ok {
			return "", false
		}
		s, ok := rid.(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	})
	unionByKey(func(p types.RawPaper) (string, bool) {
		if p.FullTextURL == "" {
			return "", false
		}
		return strings.TrimSpace(p.FullTextURL), true
	})
	unionByKey(func(p types.RawPaper) (string, bool) {
		return normalizeTitle(p.Title), true
	})

	grouped := make(map[string][]types.RawPaper)
	var rootOrder []string
	for i, p := range papers {
		root := find(ids[i])
		if _, seen := grouped[root]; !seen {
			rootOrder = append(rootOrder, root)
		}
		grouped[root] = append(grouped[root], p)
	}

	for _, root := range rootOrder {
		g := grouped[root]
		if len(g) > 1 {
			groups = append(groups, g)
		} else {
			ungrouped = append(ungrouped, g[0])
		}
	}
	return groups, ungrouped
}

// paperKey returns a stable union-find key for a paper: its ID, or its
// index when the ID is empty. Papers that share a non-empty ID share a
// key and so end up in the same group.
func paperKey(p types.RawPaper, i int) string {
	if p.ID != "" {
		return p.ID
	}
	return "idx:" + strconv.Itoa(i)
}

func normalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = dedupPunctRE.ReplaceAllString(t, "")
	t = dedupSpaceRE.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

type dedupEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  *int   `json:"year,omitempty"`
}

// llmPass asks the model to identify semantic duplicates among papers
// that the algorithm pass could not group. A model failure degrades to
// treating every paper as its own singleton group.
func (d *Deduplicator) llmPass(ctx context.Context, papers []types.RawPaper) (groups [][]types.RawPaper, remaining []types.RawPaper) {
	byID := make(map[string]types.RawPaper, len(papers))
	entries := make([]dedupEntry, len(papers))
	for i, p := range papers {
		byID[p.ID] = p
		entries[i] = dedupEntry{ID: p.ID, Title: p.Title, Year: p.Year}
	}

	userMsg, err := json.Marshal(entries)
	if err != nil {
		return nil, papers
	}

	result, err := d.llm.CompleteJSON(ctx, prompts.Dedup, string(userMsg), nil)
	if err != nil {
		slog.Warn("dedup LLM pass failed, skipping", "error", err)
		return nil, papers
	}

	rawGroups, _ := result["groups"].([]any)
	seen := make(map[string]bool)
	for _, rg := range rawGroups {
		idsAny, ok := rg.([]any)
		if !ok || len(idsAny) < 2 {
			continue
		}
		var groupPapers []types.RawPaper
		for _, idAny := range idsAny {
			id, ok := idAny.(string)
			if !ok || seen[id] {
				continue
			}
			p, ok := byID[id]
			if !ok {
				continue
			}
			groupPapers = append(groupPapers, p)
			seen[id] = true
		}
		if len(groupPapers) > 1 {
			groups = append(groups, groupPapers)
		}
	}

	for _, p := range papers {
		if !seen[p.ID] {
			remaining = append(remaining, p)
		}
	}
	return groups, remaining
}

// mergeGroup merges a group of duplicate papers into the richest single
// record, filling missing fields from the others and keeping the highest
// citation count.
func mergeGroup(group []types.RawPaper) types.RawPaper {
	if len(group) == 1 {
		return group[0]
	}

	best := group[0]
	bestScore := richness(best)
	for _, p := range group[1:] {
		if s := richness(p); s > bestScore || (s == bestScore && p.CitationCount > best.CitationCount) {
			best, bestScore = p, s
		}
	}

	for _, other := range group {
		if best.DOI == "" && other.DOI != "" {
			best.DOI = other.DOI
		}
		if best.Snippet == "" && other.Snippet != "" {
			best.Snippet = other.Snippet
		}
		if best.Year == nil && other.Year != nil {
			best.Year = other.Year
		}
		if best.Venue == "" && other.Venue != "" {
			best.Venue = other.Venue
		}
		if best.FullTextURL == "" && other.FullTextURL != "" {
			best.FullTextURL = other.FullTextURL
		}
		if other.CitationCount > best.CitationCount {
			best.CitationCount = other.CitationCount
		}
	}
	return best
}

func richness(p types.RawPaper) int {
	score := 0
	if p.DOI != "" {
		score++
	}
	if p.Snippet != "" {
		score++
	}
	if p.Year != nil {
		score++
	}
	if p.Venue != "" {
		score++
	}
	if p.FullTextURL != "" {
		score++
	}
	return score
}
