// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivSource queries the arXiv API.
type ArxivSource struct {
	Client    *http.Client
	UserAgent string
}

// NewArxivSource constructs an ArxivSource with sane defaults.
func NewArxivSource(client *http.Client, userAgent string) *ArxivSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = "paper-search/1.0"
	}
	return &ArxivSource{Client: client, UserAgent: userAgent}
}

func (s *ArxivSource) Name() string { return "arxiv" }

// Search implements SearchSource.
func (s *ArxivSource) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo *int, language string) ([]types.RawPaper, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	reqURL := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, q, maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, permanentErr(fmt.Sprintf("building arxiv request: %v", err))
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, retryableErr(fmt.Sprintf("arxiv API request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, permanentErr(fmt.Sprintf("arxiv API authentication error (%d)", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retryableErr(fmt.Sprintf("arxiv API returned HTTP %d", resp.StatusCode))
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, permanentErr(fmt.Sprintf("parsing arxiv response: %v", err))
	}

	var papers []types.RawPaper
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		var year *int
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			y := t.Year()
			year = &y
			if yearFrom != nil && y < *yearFrom {
				continue
			}
			if yearTo != nil && y > *yearTo {
				continue
			}
		}

		var authors []string
		for _, a := range entry.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				authors = append(authors, name)
			}
		}

		papers = append(papers, types.RawPaper{
			ID:          arxivID,
			Title:       strings.TrimSpace(entry.Title),
			Authors:     authors,
			Year:        year,
			Snippet:     strings.TrimSpace(entry.Summary),
			FullTextURL: "https://arxiv.org/abs/" + arxivID,
			Source:      "arxiv",
		})

		if len(papers) >= maxResults {
			break
		}
	}
	return papers, nil
}

// SearchAdvanced implements SearchSource by running each query in the
// strategy through Search and concatenating the results.
func (s *ArxivSource) SearchAdvanced(ctx context.Context, strategy types.SearchStrategy) ([]types.RawPaper, error) {
	if len(strategy.Queries) == 0 {
		return nil, nil
	}

	perQuery := strategy.Filters.MaxResults / len(strategy.Queries)
	if perQuery < 1 {
		perQuery = 1
	}

	var all []types.RawPaper
	for _, q := range strategy.Queries {
		results, err := s.Search(ctx, q.BooleanQuery, perQuery, strategy.Filters.YearFrom, strategy.Filters.YearTo, strategy.Filters.Language)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// buildArxivQuery constructs the search_query parameter from free text.
func buildArxivQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	return "all:" + strings.Join(terms, "+")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
