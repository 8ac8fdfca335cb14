// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mesh-intelligence/paper-search/internal/httputil"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,venue,citationCount"

// SemanticScholarSource queries the Semantic Scholar API.
type SemanticScholarSource struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// NewSemanticScholarSource constructs a SemanticScholarSource.
func NewSemanticScholarSource(client *http.Client, apiKey, userAgent string) *SemanticScholarSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = "paper-search/1.0"
	}
	return &SemanticScholarSource{Client: client, APIKey: apiKey, UserAgent: userAgent}
}

func (s *SemanticScholarSource) Name() string { return "semantic_scholar" }

// Search implements SearchSource.
func (s *SemanticScholarSource) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo *int, language string) ([]types.RawPaper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {semanticFields},
	}
	if yearRange := buildYearRange(yearFrom, yearTo); yearRange != "" {
		params.Set("year", yearRange)
	}

	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, permanentErr(fmt.Sprintf("building semantic scholar request: %v", err))
	}
	req.Header.Set("User-Agent", s.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, retryableErr(fmt.Sprintf("semantic scholar API request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, permanentErr(fmt.Sprintf("semantic scholar authentication error (%d)", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retryableErr(fmt.Sprintf("semantic scholar API returned HTTP %d", resp.StatusCode))
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, permanentErr(fmt.Sprintf("parsing semantic scholar response: %v", err))
	}

	var papers []types.RawPaper
	for _, paper := range sr.Data {
		var year *int
		if paper.Year > 0 {
			y := paper.Year
			year = &y
		}

		var authors []string
		for _, a := range paper.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}

		id := paper.PaperID
		if paper.ExternalIDs.DOI != "" {
			id = paper.ExternalIDs.DOI
		}

		papers = append(papers, types.RawPaper{
			ID:            id,
			Title:         paper.Title,
			Authors:       authors,
			Year:          year,
			Venue:         paper.Venue,
			DOI:           paper.ExternalIDs.DOI,
			Snippet:       paper.Abstract,
			CitationCount: paper.CitationCount,
			Source:        "semantic_scholar",
		})
		if len(papers) >= maxResults {
			break
		}
	}
	return papers, nil
}

// SearchAdvanced implements SearchSource.
func (s *SemanticScholarSource) SearchAdvanced(ctx context.Context, strategy types.SearchStrategy) ([]types.RawPaper, error) {
	if len(strategy.Queries) == 0 {
		return nil, nil
	}

	perQuery := strategy.Filters.MaxResults / len(strategy.Queries)
	if perQuery < 1 {
		perQuery = 1
	}

	var all []types.RawPaper
	for _, q := range strategy.Queries {
		query := strings.Join(q.Keywords, " ")
		if query == "" {
			query = q.BooleanQuery
		}
		results, err := s.Search(ctx, query, perQuery, strategy.Filters.YearFrom, strategy.Filters.YearTo, strategy.Filters.Language)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// buildYearRange returns a Semantic Scholar year filter string (e.g. "2020-2023").
func buildYearRange(from, to *int) string {
	switch {
	case from != nil && to != nil:
		return fmt.Sprintf("%d-%d", *from, *to)
	case from != nil:
		return fmt.Sprintf("%d-", *from)
	case to != nil:
		return fmt.Sprintf("-%d", *to)
	default:
		return ""
	}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Venue           string              `json:"venue"`
	Year            int                 `json:"year"`
	CitationCount   int                 `json:"citationCount"`
	PublicationDate string              `json:"publicationDate"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}
