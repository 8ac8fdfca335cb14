// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withScholarServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := scholarSearchURL
	scholarSearchURL = ts.URL
	t.Cleanup(func() { scholarSearchURL = old })
	return ts
}

func TestScholarSource_Search_SinglePage(t *testing.T) {
	withScholarServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Only the first page has results; the next page is empty, which
		// ends pagination.
		if r.URL.Query().Get("start") != "0" {
			json.NewEncoder(w).Encode(map[string]any{"organic_results": []map[string]any{}})
			return
		}
		resp := map[string]any{
			"organic_results": []map[string]any{
				{
					"title":   "Deep Learning for Materials",
					"snippet": "A survey of methods",
					"link":    "https://example.com/paper1",
					"publication_info": map[string]any{
						"summary": "J Smith, A Lee - 2021 - Journal of Materials Science",
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	src := NewScholarSource("key", 1000, 0, 0, nil)
	papers, err := src.Search(context.Background(), "materials", 10, nil, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(papers))
	}
	p := papers[0]
	if p.Title != "Deep Learning for Materials" {
		t.Errorf("unexpected title: %q", p.Title)
	}
	if len(p.Authors) != 2 || p.Authors[0] != "J Smith" {
		t.Errorf("unexpected authors: %v", p.Authors)
	}
	if p.Year == nil || *p.Year != 2021 {
		t.Errorf("unexpected year: %v", p.Year)
	}
	if p.Venue != "Journal of Materials Science" {
		t.Errorf("unexpected venue: %q", p.Venue)
	}
}

func TestScholarSource_Search_AuthErrorPermanent(t *testing.T) {
	withScholarServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	src := NewScholarSource("bad-key", 1000, 0, 0, nil)
	_, err := src.Search(context.Background(), "materials", 10, nil, nil, "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsRetryable(err) {
		t.Error("expected a permanent error, got retryable")
	}
}

func TestScholarSource_Search_ErrorFieldInBody(t *testing.T) {
	withScholarServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "Invalid API key"})
	})

	src := NewScholarSource("bad-key", 1000, 0, 0, nil)
	_, err := src.Search(context.Background(), "materials", 10, nil, nil, "")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestScholarSource_Search_ZeroMaxResults(t *testing.T) {
	src := NewScholarSource("key", 1000, 0, 0, nil)
	papers, err := src.Search(context.Background(), "materials", 0, nil, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if papers != nil {
		t.Errorf("expected nil papers, got %v", papers)
	}
}

func TestScholarSource_Search_UsesCache(t *testing.T) {
	var calls int
	withScholarServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		// A full page of 5 results satisfies the request in one call.
		results := make([]map[string]any, 5)
		for i := range results {
			results[i] = map[string]any{"title": "Cached Paper"}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"organic_results": results,
		})
	})

	cache, err := NewResolutionCache(t.TempDir() + "/cache.db")
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	defer cache.Close()

	src := NewScholarSource("key", 1000, 0, 0, cache)
	ctx := context.Background()

	if _, err := src.Search(ctx, "materials", 5, nil, nil, ""); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if _, err := src.Search(ctx, "materials", 5, nil, nil, ""); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 network call due to caching, got %d", calls)
	}
}

func TestParseSummary(t *testing.T) {
	cases := []struct {
		name        string
		summary     string
		wantAuthors []string
		wantYear    *int
		wantVenue   string
	}{
		{
			name:        "full form with year",
			summary:     "J Smith, A Lee - 2021 - Journal of Materials Science",
			wantAuthors: []string{"J Smith", "A Lee"},
			wantYear:    intPtr(2021),
			wantVenue:   "Journal of Materials Science",
		},
		{
			name:    "empty",
			summary: "",
		},
		{
			name:        "no year, hostname venue filtered",
			summary:     "J Smith - somevenue.edu",
			wantAuthors: []string{"J Smith"},
			wantVenue:   "",
		},
		{
			name:        "year present, hostname venue filtered",
			summary:     "J Smith - 2020 - scholar.google.com",
			wantAuthors: []string{"J Smith"},
			wantYear:    intPtr(2020),
			wantVenue:   "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authors, year, venue := parseSummary(tc.summary)
			if len(authors) != len(tc.wantAuthors) {
				t.Errorf("authors = %v, want %v", authors, tc.wantAuthors)
			}
			if (year == nil) != (tc.wantYear == nil) {
				t.Errorf("year = %v, want %v", year, tc.wantYear)
			}
			if venue != tc.wantVenue {
				t.Errorf("venue = %q, want %q", venue, tc.wantVenue)
			}
		})
	}
}

func TestExtractDOI(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"see https://doi.org/10.1234/abcd.5678 for details", "10.1234/abcd.5678"},
		{"no doi here", ""},
		{"trailing punctuation 10.1000/xyz123.", "10.1000/xyz123"},
	}
	for _, tc := range cases {
		got := extractDOI(tc.text)
		if got != tc.want {
			t.Errorf("extractDOI(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func intPtr(i int) *int { return &i }
