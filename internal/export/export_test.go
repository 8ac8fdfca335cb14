// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

func intPtr(i int) *int { return &i }

func makeCollection(papers []types.Paper) types.PaperCollection {
	return types.PaperCollection{
		Metadata: types.SearchMetadata{Query: "test", TotalFound: len(papers)},
		Papers:   papers,
	}
}

var emptyCollection = makeCollection(nil)

var singlePaper = makeCollection([]types.Paper{
	{
		ID:              "p1",
		Title:           "Perovskite Solar Cells",
		Authors:         []string{"Wang Lei", "Zhang Wei"},
		Year:            intPtr(2023),
		Venue:           "Nature Energy",
		DOI:             "10.1234/test",
		FullTextURL:     "https://example.com/p1",
		RelevanceScore:  0.95,
		RelevanceReason: "Highly relevant",
	},
})

var multiPaper = makeCollection([]types.Paper{
	{ID: "p1", Title: "Paper Alpha", Authors: []string{"Alice Smith"}, Year: intPtr(2023), Venue: "Journal A", RelevanceScore: 0.9},
	{ID: "p2", Title: "Paper Beta", Authors: []string{"Bob Jones", "Carol Lee"}, Year: intPtr(2022), Venue: "Journal B", RelevanceScore: 0.7},
	{ID: "p3", Title: "Paper Gamma", Authors: []string{"Dave Wilson", "Eve Brown", "Frank Green", "Grace Black"}, Year: intPtr(2021), RelevanceScore: 0.5},
})

var specialCharsPaper = makeCollection([]types.Paper{
	{ID: "sp1", Title: "Fe & Co alloys: 10% improvement", Authors: []string{"Kim_Park"}, Year: intPtr(2023), Venue: "J. Mater. Sci. & Tech.", RelevanceScore: 0.8},
})

func TestJSON_ValidAndPreservesPapers(t *testing.T) {
	out, err := JSON(multiPaper)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))

	papers, ok := parsed["papers"].([]any)
	require.True(t, ok)
	ids := make(map[string]bool)
	for _, p := range papers {
		m := p.(map[string]any)
		ids[m["id"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"p1": true, "p2": true, "p3": true}, ids)
}

func TestJSON_Idempotent(t *testing.T) {
	a, err := JSON(multiPaper)
	require.NoError(t, err)
	b, err := JSON(multiPaper)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestJSON_Empty(t *testing.T) {
	out, err := JSON(emptyCollection)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Empty(t, parsed["papers"])
}

func TestBibTeX_EntryCount(t *testing.T) {
	out := BibTeX(multiPaper)
	assert.Equal(t, 3, strings.Count(out, "@article{"))
}

var bibtexKeyRe = regexp.MustCompile(`@article\{([^,]+),`)

func TestBibTeX_KeyUniqueness(t *testing.T) {
	dup := makeCollection([]types.Paper{
		{ID: "d1", Title: "Alpha method", Authors: []string{"Smith John"}, Year: intPtr(2023), RelevanceScore: 0.9},
		{ID: "d2", Title: "Alpha approach", Authors: []string{"Smith Jane"}, Year: intPtr(2023), RelevanceScore: 0.8},
	})
	out := BibTeX(dup)
	matches := bibtexKeyRe.FindAllStringSubmatch(out, -1)
	seen := make(map[string]bool)
	for _, m := range matches {
		assert.False(t, seen[m[1]], "duplicate key %q", m[1])
		seen[m[1]] = true
	}
	assert.Len(t, matches, 2)
}

func TestBibTeX_SpecialCharsEscaped(t *testing.T) {
	out := BibTeX(specialCharsPaper)
	assert.Contains(t, out, `\&`)
	assert.Contains(t, out, `\_`)
}

func TestBibTeX_Empty(t *testing.T) {
	assert.Equal(t, "", BibTeX(emptyCollection))
}

func TestBibTeX_MissingFieldsOmitted(t *testing.T) {
	minimal := makeCollection([]types.Paper{
		{ID: "m1", Title: "Minimal", Authors: []string{"Test Author"}, RelevanceScore: 0.5},
	})
	out := BibTeX(minimal)
	assert.NotContains(t, out, "doi")
	assert.NotContains(t, out, "journal")
	assert.NotContains(t, out, "url")
	assert.Contains(t, out, "@article{")
}

func TestMarkdown_RowCount(t *testing.T) {
	out := Markdown(multiPaper)
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	assert.Len(t, lines, 3+2)
}

func TestMarkdown_Header(t *testing.T) {
	out := Markdown(singlePaper)
	first := strings.Split(out, "\n")[0]
	for _, col := range []string{"Title", "Authors", "Year", "Venue", "Score"} {
		assert.Contains(t, first, col)
	}
}

func TestMarkdown_Empty(t *testing.T) {
	out := Markdown(emptyCollection)
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	assert.Len(t, lines, 2)
}

func TestMarkdown_ScoreFormat(t *testing.T) {
	out := Markdown(singlePaper)
	assert.Contains(t, out, "0.95")
}
