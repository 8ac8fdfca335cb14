// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withArxivServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() { arxivAPIBase = old })
	return ts
}

const arxivFeedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/%s</id>
    <title>%s</title>
    <summary>%s</summary>
    <published>%s</published>
    <author><name>%s</name></author>
  </entry>
</feed>`

func TestArxivSource_Search(t *testing.T) {
	withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, arxivFeedTemplate, "2301.07041v2", "Attention Is All You Need",
			"A transformer architecture.", "2023-01-17T00:00:00Z", "Ashish Vaswani")
	})

	src := NewArxivSource(nil, "")
	papers, err := src.Search(context.Background(), "transformer models", 10, nil, nil, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("len(papers) = %d, want 1", len(papers))
	}
	p := papers[0]
	if p.ID != "2301.07041" {
		t.Errorf("ID = %q, want %q (version suffix stripped)", p.ID, "2301.07041")
	}
	if p.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", p.Title)
	}
	if len(p.Authors) != 1 || p.Authors[0] != "Ashish Vaswani" {
		t.Errorf("Authors = %v", p.Authors)
	}
	if p.Year == nil || *p.Year != 2023 {
		t.Errorf("Year = %v, want 2023", p.Year)
	}
	if p.FullTextURL != "https://arxiv.org/abs/2301.07041" {
		t.Errorf("FullTextURL = %q", p.FullTextURL)
	}
}

func TestArxivSource_YearFilter(t *testing.T) {
	withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, arxivFeedTemplate, "1903.00001", "Older Paper",
			"An older summary.", "2019-03-01T00:00:00Z", "Old Author")
	})

	src := NewArxivSource(nil, "")
	yearFrom := 2021
	papers, err := src.Search(context.Background(), "test", 10, &yearFrom, nil, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 0 {
		t.Errorf("expected papers published before yearFrom to be filtered out, got %d", len(papers))
	}
}

func TestArxivSource_EmptyQuery(t *testing.T) {
	src := NewArxivSource(nil, "")
	papers, err := src.Search(context.Background(), "   ", 10, nil, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if papers != nil {
		t.Errorf("expected nil papers for empty query, got %v", papers)
	}
}

func TestArxivSource_HTTPError(t *testing.T) {
	withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	src := NewArxivSource(nil, "")
	_, err := src.Search(context.Background(), "test", 10, nil, nil, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Error("expected a retryable error for HTTP 500")
	}
}

func TestArxivSource_Name(t *testing.T) {
	src := NewArxivSource(nil, "")
	if got := src.Name(); got != "arxiv" {
		t.Errorf("Name() = %q, want %q", got, "arxiv")
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041v10", "2301.07041"},
		{"not a valid id", ""},
	}
	for _, tt := range tests {
		got := extractArxivID(tt.url)
		if got != tt.want {
			t.Errorf("extractArxivID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestBuildArxivQuery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"attention transformer", "all:attention+transformer"},
		{"", ""},
	}
	for _, tt := range tests {
		got := buildArxivQuery(tt.query)
		if got != tt.want {
			t.Errorf("buildArxivQuery(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}
