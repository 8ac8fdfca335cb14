// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sort"
	"strings"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

const minWordLen = 3

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(
		"the a an in of on for and or to is are was were with by from at as " +
			"its this that these those it be been has have had not but also can " +
			"will may would could should into between their our them they than " +
			"more most about over under such when where which what how other some " +
			"all any each very only then so no") {
		stopwords[w] = true
	}
}

// ResultOrganizer filters, sorts, projects, and facets a batch of scored
// papers into the engine's final PaperCollection (§4.8).
type ResultOrganizer struct {
	minRelevance float64
}

// NewResultOrganizer constructs a ResultOrganizer. Papers scoring below
// minRelevance are dropped.
func NewResultOrganizer(minRelevance float64) *ResultOrganizer {
	return &ResultOrganizer{minRelevance: minRelevance}
}

// Organize builds the final PaperCollection from scored papers.
func (o *ResultOrganizer) Organize(papers []types.ScoredPaper, strategy types.SearchStrategy, originalQuery string) types.PaperCollection {
	totalFound := len(papers)

	filtered := make([]types.ScoredPaper, 0, len(papers))
	for _, p := range papers {
		if p.RelevanceScore >= o.minRelevance {
			filtered = append(filtered, p)
		}
	}

	sortScoredPapers(filtered)

	finalPapers := make([]types.Paper, len(filtered))
	for i, sp := range filtered {
		finalPapers[i] = toPaper(sp)
	}

	facets := buildFacets(finalPapers)

	metadata := types.SearchMetadata{
		Query:          originalQuery,
		SearchStrategy: strategy,
		TotalFound:     totalFound,
	}

	return types.PaperCollection{Metadata: metadata, Papers: finalPapers, Facets: facets}
}

func sortScoredPapers(papers []types.ScoredPaper) {
	sort.SliceStable(papers, func(i, j int) bool {
		a, b := papers[i], papers[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.Paper.CitationCount != b.Paper.CitationCount {
			return a.Paper.CitationCount > b.Paper.CitationCount
		}
		ay, by := yearOrZero(a.Paper.Year), yearOrZero(b.Paper.Year)
		if ay != by {
			return ay > by
		}
		return strings.ToLower(a.Paper.Title) < strings.ToLower(b.Paper.Title)
	})
}

func yearOrZero(y *int) int {
	if y == nil {
		return 0
	}
	return *y
}

func toPaper(sp types.ScoredPaper) types.Paper {
	p := sp.Paper
	return types.Paper{
		ID:              p.ID,
		DOI:             p.DOI,
		Title:           p.Title,
		Authors:         p.Authors,
		Year:            p.Year,
		Venue:           p.Venue,
		Snippet:         p.Snippet,
		FullTextURL:     p.FullTextURL,
		CitationCount:   p.CitationCount,
		RelevanceScore:  sp.RelevanceScore,
		RelevanceReason: sp.RelevanceReason,
		Tags:            sp.Tags,
	}
}

func buildFacets(papers []types.Paper) types.Facets {
	byYear := map[int]int{}
	byVenue := map[string]int{}
	authorCounts := map[string]int{}
	var authorOrder []string
	wordCounts := map[string]int{}
	var wordOrder []string

	for _, p := range papers {
		if p.Year != nil {
			byYear[*p.Year]++
		}
		if p.Venue != "" {
			byVenue[titleCase(strings.TrimSpace(p.Venue))]++
		}
		for _, a := range p.Authors {
			if authorCounts[a] == 0 {
				authorOrder = append(authorOrder, a)
			}
			authorCounts[a]++
		}
		if p.RelevanceScore >= 0.5 {
			for _, w := range strings.Fields(strings.ToLower(p.Title)) {
				cleaned := strings.Trim(w, ".,;:!?()[]{}\"'")
				if len(cleaned) >= minWordLen && !stopwords[cleaned] {
					if wordCounts[cleaned] == 0 {
						wordOrder = append(wordOrder, cleaned)
					}
					wordCounts[cleaned]++
				}
			}
		}
	}

	return types.Facets{
		ByYear:     byYear,
		ByVenue:    byVenue,
		TopAuthors: topN(authorOrder, authorCounts, 10),
		KeyThemes:  topN(wordOrder, wordCounts, 8),
	}
}

// topN returns the n most frequent keys in counts, breaking ties by first
// appearance in order (matching Counter.most_common's stable ordering).
func topN(order []string, counts map[string]int, n int) []string {
	ranked := append([]string{}, order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
			for j := 1; j < len(r); j++ {
				r[j] = []rune(strings.ToLower(string(r[j])))[0]
			}
			words[i] = string(r)
		}
	}
	return strings.Join(words, " ")
}
