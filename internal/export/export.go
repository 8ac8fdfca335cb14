// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export renders a PaperCollection into the output formats the
// session layer and CLI expose: JSON, BibTeX, Markdown, and CSL-YAML.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// JSON serializes a collection to indented JSON.
func JSON(collection types.PaperCollection) (string, error) {
	b, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling collection: %w", err)
	}
	return string(b), nil
}

var bibtexSpecial = strings.NewReplacer(
	"&", `\&`,
	"%", `\%`,
	"_", `\_`,
	"#", `\#`,
)

func escapeBibtex(text string) string { return bibtexSpecial.Replace(text) }

var nonKeyChars = regexp.MustCompile(`[^a-z0-9_]`)
var titleWordRe = regexp.MustCompile(`[a-zA-Z]+`)

// BibTeX generates BibTeX @article entries for every paper in the
// collection, separated by blank lines. Keys are deduplicated by
// appending successive lowercase letter suffixes on collision.
func BibTeX(collection types.PaperCollection) string {
	if len(collection.Papers) == 0 {
		return ""
	}

	seen := make(map[string]bool)
	entries := make([]string, 0, len(collection.Papers))
	for _, paper := range collection.Papers {
		key := bibtexKey(paper, seen)
		entries = append(entries, bibtexEntry(paper, key))
	}
	return strings.Join(entries, "\n\n")
}

func bibtexKey(paper types.Paper, seen map[string]bool) string {
	name := "unknown"
	if len(paper.Authors) > 0 {
		fields := strings.Fields(paper.Authors[0])
		if len(fields) > 0 {
			name = strings.ToLower(fields[len(fields)-1])
		}
	}

	year := "nd"
	if paper.Year != nil {
		year = strconv.Itoa(*paper.Year)
	}

	firstWord := "untitled"
	if words := titleWordRe.FindAllString(paper.Title, 1); len(words) > 0 {
		firstWord = strings.ToLower(words[0])
	}

	base := nonKeyChars.ReplaceAllString(fmt.Sprintf("%s_%s_%s", name, year, firstWord), "")

	key := base
	suffix := 0
	for seen[key] {
		key = fmt.Sprintf("%s_%c", base, 'a'+suffix)
		suffix++
	}
	seen[key] = true
	return key
}

func bibtexEntry(paper types.Paper, key string) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("@article{%s,", key))

	if len(paper.Authors) > 0 {
		lines = append(lines, fmt.Sprintf("  author = {%s},", escapeBibtex(strings.Join(paper.Authors, " and "))))
	} else {
		lines = append(lines, "  author = {Unknown},")
	}

	lines = append(lines, fmt.Sprintf("  title = {{%s}},", escapeBibtex(paper.Title)))

	if paper.Year != nil {
		lines = append(lines, fmt.Sprintf("  year = {%d},", *paper.Year))
	}
	if paper.Venue != "" {
		lines = append(lines, fmt.Sprintf("  journal = {%s},", escapeBibtex(paper.Venue)))
	}
	if paper.DOI != "" {
		lines = append(lines, fmt.Sprintf("  doi = {%s},", paper.DOI))
	}
	if paper.FullTextURL != "" {
		lines = append(lines, fmt.Sprintf("  url = {%s},", paper.FullTextURL))
	}

	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}

// Markdown renders the collection as a Markdown results table.
func Markdown(collection types.PaperCollection) string {
	lines := []string{
		"| # | Title | Authors | Year | Venue | Score |",
		"|---|-------|---------|------|-------|-------|",
	}
	for i, paper := range collection.Papers {
		year := "-"
		if paper.Year != nil {
			year = strconv.Itoa(*paper.Year)
		}
		venue := paper.Venue
		if venue == "" {
			venue = "-"
		}
		lines = append(lines, fmt.Sprintf("| %d | %s | %s | %s | %s | %.2f |",
			i+1, paper.Title, shortAuthors(paper.Authors), year, venue, paper.RelevanceScore))
	}
	return strings.Join(lines, "\n")
}

func shortAuthors(authors []string) string {
	if len(authors) == 0 {
		return "-"
	}
	if len(authors) <= 3 {
		return strings.Join(authors, ", ")
	}
	return authors[0] + " et al."
}
