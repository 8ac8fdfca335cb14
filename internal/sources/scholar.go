// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mesh-intelligence/paper-search/internal/httputil"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

var (
	hostnamePattern  = regexp.MustCompile(`(?i)\S+\.(?:com|org|edu|net)(?:\b|/|$)`)
	yearPattern      = regexp.MustCompile(`^(19|20)\d{2}$`)
	doiPattern       = regexp.MustCompile(`10\.\d{4,9}/[^\s,;)}\]>]+`)
	segmentSplitRe   = regexp.MustCompile(`\s+-\s+`)
	scholarSearchURL = "https://serpapi.com/search.json"
)

func isHostname(s string) bool {
	return hostnamePattern.MatchString(strings.TrimSpace(s))
}

// ScholarSource searches Google Scholar via the SerpAPI proxy. It owns its
// own rate limiter (requests per second) and retries transient failures
// with jittered exponential backoff (§4.1).
type ScholarSource struct {
	apiKey      string
	client      *http.Client
	rateLimitRS float64
	maxRetries  int
	cache       *ResolutionCache

	mu              sync.Mutex
	lastRequestTime time.Time
	minInterval     time.Duration
}

// NewScholarSource constructs a ScholarSource. A non-positive rateLimitRPS
// defaults to 2 requests/second, a non-positive maxRetries to 3, and a
// non-positive timeout to 20s. A nil cache disables cross-call memoization.
func NewScholarSource(apiKey string, rateLimitRPS float64, timeout time.Duration, maxRetries int, cache *ResolutionCache) *ScholarSource {
	if rateLimitRPS <= 0 {
		rateLimitRPS = 2.0
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if cache == nil {
		cache = &ResolutionCache{}
	}
	return &ScholarSource{
		apiKey:      apiKey,
		client:      &http.Client{Timeout: timeout},
		rateLimitRS: rateLimitRPS,
		maxRetries:  maxRetries,
		cache:       cache,
		minInterval: time.Duration(float64(time.Second) / rateLimitRPS),
	}
}

func (s *ScholarSource) Name() string { return "serpapi_scholar" }

func (s *ScholarSource) rateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.lastRequestTime)
	if elapsed < s.minInterval {
		time.Sleep(s.minInterval - elapsed)
	}
	s.lastRequestTime = time.Now()
}

func (s *ScholarSource) fetchPage(ctx context.Context, params url.Values) (map[string]any, error) {
	s.rateLimit()

	req, err := http.NewRequest(http.MethodGet, scholarSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, permanentErr(fmt.Sprintf("building scholar request: %v", err))
	}

	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return nil, retryableErr(fmt.Sprintf("scholar request failed after retries: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, permanentErr(fmt.Sprintf("scholar authentication error (%d)", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, retryableErr(fmt.Sprintf("scholar request failed after retries with HTTP %d", resp.StatusCode))
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, permanentErr(fmt.Sprintf("decoding scholar response: %v", err))
	}
	if errVal, ok := data["error"]; ok {
		return nil, permanentErr(fmt.Sprintf("scholar API error: %v", errVal))
	}
	return data, nil
}

// parseSummary parses a publication_info.summary string of the shape
// "Author1, Author2 - 2021 - venue.com" into authors, year, and venue. It
// never returns an error; malformed input yields empty fields.
func parseSummary(summary string) (authors []string, year *int, venue string) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, nil, ""
	}

	var segments []string
	for _, seg := range segmentSplitRe.Split(summary, -1) {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return nil, nil, ""
	}

	yearIndex := -1
	for i, seg := range segments {
		if yearPattern.MatchString(seg) {
			if y, err := strconv.Atoi(seg); err == nil {
				yearIndex = i
				year = &y
			}
			break
		}
	}

	if yearIndex >= 0 {
		authors = splitAuthors(strings.Join(segments[:yearIndex], ", "))
		var venueParts []string
		for _, seg := range segments[yearIndex+1:] {
			if !isHostname(seg) {
				venueParts = append(venueParts, seg)
			}
		}
		venue = strings.TrimSpace(strings.Join(venueParts, " - "))
		return authors, year, venue
	}

	authors = splitAuthors(segments[0])
	if len(segments) > 1 {
		last := segments[len(segments)-1]
		if !isHostname(last) {
			venue = last
		}
	}
	return authors, nil, venue
}

func splitAuthors(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// extractDOI returns the first DOI found in text, or "" if none.
func extractDOI(text string) string {
	if text == "" {
		return ""
	}
	match := doiPattern.FindString(text)
	return strings.TrimRight(match, ".,;:)")
}

func asString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func asMap(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func asSlice(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}

// parseResult parses a single organic_results entry into a RawPaper. It
// never fails: a malformed entry yields a RawPaper carrying only the title
// and raw data it could salvage.
func parseResult(raw map[string]any) types.RawPaper {
	defer func() { recover() }()

	summary := asString(asMap(raw, "publication_info"), "summary")
	authors, year, venue := parseSummary(summary)

	citationCount := 0
	if total, ok := asMap(asMap(raw, "inline_links"), "cited_by")["total"].(float64); ok {
		citationCount = int(total)
	}

	fullTextURL := ""
	for _, r := range asSlice(raw, "resources") {
		resource, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if asString(resource, "file_format") == "PDF" && asString(resource, "link") != "" {
			fullTextURL = asString(resource, "link")
			break
		}
	}
	if fullTextURL == "" {
		fullTextURL = asString(raw, "link")
	}

	doi := extractDOI(asString(raw, "link") + " " + asString(raw, "snippet"))

	return types.RawPaper{
		ID:            doi,
		Title:         asString(raw, "title"),
		Authors:       authors,
		Year:          year,
		Venue:         venue,
		DOI:           doi,
		Snippet:       asString(raw, "snippet"),
		FullTextURL:   fullTextURL,
		CitationCount: citationCount,
		Source:        "serpapi_scholar",
		RawData:       raw,
	}
}

// Search implements SearchSource.
func (s *ScholarSource) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo *int, language string) ([]types.RawPaper, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	cacheKey := Key(s.Name(), query, maxResults, yearFrom, yearTo, language)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	pageSize := maxResults
	if pageSize > 20 {
		pageSize = 20
	}

	base := url.Values{}
	base.Set("engine", "google_scholar")
	base.Set("q", query)
	base.Set("api_key", s.apiKey)
	base.Set("num", strconv.Itoa(pageSize))
	if yearFrom != nil {
		base.Set("as_ylo", strconv.Itoa(*yearFrom))
	}
	if yearTo != nil {
		base.Set("as_yhi", strconv.Itoa(*yearTo))
	}
	if language != "" {
		base.Set("lr", "lang_"+language)
	}

	var papers []types.RawPaper
	start := 0

	for len(papers) < maxResults {
		params := url.Values{}
		for k, v := range base {
			params[k] = v
		}
		params.Set("start", strconv.Itoa(start))

		data, err := s.fetchPage(ctx, params)
		if err != nil {
			if len(papers) > 0 {
				return papers[:min(len(papers), maxResults)], nil
			}
			return nil, err
		}

		results := asSlice(data, "organic_results")
		if len(results) == 0 {
			break
		}

		for _, r := range results {
			raw, ok := r.(map[string]any)
			if !ok {
				continue
			}
			papers = append(papers, parseResult(raw))
			if len(papers) >= maxResults {
				break
			}
		}

		start += pageSize
	}

	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}
	s.cache.Put(cacheKey, s.Name(), papers)
	return papers, nil
}

// SearchAdvanced implements SearchSource. The max_results budget from the
// strategy's filters is divided evenly across its queries rather than
// applied per source, matching the reference adapter.
func (s *ScholarSource) SearchAdvanced(ctx context.Context, strategy types.SearchStrategy) ([]types.RawPaper, error) {
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
