// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mesh-intelligence/paper-search/internal/httputil"
)

func init() {
	httputil.RetryBaseUnit = 1 * time.Millisecond
}

func withSemanticServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := semanticAPIBase
	semanticAPIBase = ts.URL
	t.Cleanup(func() { semanticAPIBase = old })
	return ts
}

func TestSemanticSearch_RequestParams(t *testing.T) {
	var capturedReq *http.Request
	withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		fmt.Fprint(w, `{"total":0,"offset":0,"data":[]}`)
	})

	src := NewSemanticScholarSource(nil, "", "")
	yearFrom, yearTo := 2020, 2023
	_, err := src.Search(context.Background(), "attention", 15, &yearFrom, &yearTo, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	q := capturedReq.URL.Query()
	if got := q.Get("query"); got != "attention" {
		t.Errorf("query param = %q, want %q", got, "attention")
	}
	if got := q.Get("limit"); got != "15" {
		t.Errorf("limit param = %q, want %q", got, "15")
	}
	if got := q.Get("year"); got != "2020-2023" {
		t.Errorf("year param = %q, want %q", got, "2020-2023")
	}
}

func TestSemanticSearch_APIKeyHeader(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantKey bool
	}{
		{"with API key", "test-key-123", true},
		{"without API key", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedReq *http.Request
			withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
				capturedReq = r
				fmt.Fprint(w, `{"total":0,"offset":0,"data":[]}`)
			})

			src := NewSemanticScholarSource(nil, tt.apiKey, "")
			_, err := src.Search(context.Background(), "test", 10, nil, nil, "")
			if err != nil {
				t.Fatalf("Search: %v", err)
			}

			got := capturedReq.Header.Get("x-api-key")
			if tt.wantKey && got != tt.apiKey {
				t.Errorf("x-api-key header = %q, want %q", got, tt.apiKey)
			}
			if !tt.wantKey && got != "" {
				t.Errorf("x-api-key header should be absent, got %q", got)
			}
		})
	}
}

func TestSemanticSearch_IdentifierPreference(t *testing.T) {
	tests := []struct {
		name    string
		paper   string
		wantID  string
		wantDOI string
	}{
		{
			"DOI preferred over paperId",
			`{"paperId":"abc","title":"P","authors":[],"externalIds":{"DOI":"10.555/test"}}`,
			"10.555/test",
			"10.555/test",
		},
		{
			"paperId when no DOI",
			`{"paperId":"ghi789","title":"P","authors":[],"externalIds":{}}`,
			"ghi789",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := fmt.Sprintf(`{"total":1,"offset":0,"data":[%s]}`, tt.paper)
			withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, resp)
			})

			src := NewSemanticScholarSource(nil, "", "")
			papers, err := src.Search(context.Background(), "test", 10, nil, nil, "")
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(papers) != 1 {
				t.Fatalf("len(papers) = %d, want 1", len(papers))
			}
			if papers[0].ID != tt.wantID {
				t.Errorf("ID = %q, want %q", papers[0].ID, tt.wantID)
			}
			if papers[0].DOI != tt.wantDOI {
				t.Errorf("DOI = %q, want %q", papers[0].DOI, tt.wantDOI)
			}
		})
	}
}

func TestSemanticSearch_HTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		retryable  bool
	}{
		{"429 rate limit", http.StatusTooManyRequests, true},
		{"401 auth error", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withSemanticServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			src := NewSemanticScholarSource(nil, "", "")
			_, err := src.Search(context.Background(), "test", 10, nil, nil, "")
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestSemanticSearch_EmptyQuery(t *testing.T) {
	src := NewSemanticScholarSource(nil, "", "")
	papers, err := src.Search(context.Background(), "   ", 10, nil, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if papers != nil {
		t.Errorf("expected nil papers, got %v", papers)
	}
}

func TestSemanticSearch_AuthorParsing(t *testing.T) {
	resp := `{"total":1,"offset":0,"data":[{
		"paperId":"x","title":"P",
		"authors":[{"authorId":"1","name":"Alice Smith"},{"authorId":"2","name":"Bob Jones"}],
		"externalIds":{}}]}`
	withSemanticServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, resp)
	})

	src := NewSemanticScholarSource(nil, "", "")
	papers, err := src.Search(context.Background(), "test", 10, nil, nil, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("len(papers) = %d, want 1", len(papers))
	}
	if len(papers[0].Authors) != 2 || papers[0].Authors[0] != "Alice Smith" {
		t.Errorf("Authors = %v", papers[0].Authors)
	}
}

func TestSemanticSearch_SourceField(t *testing.T) {
	resp := `{"total":1,"offset":0,"data":[{"paperId":"x","title":"P","authors":[],"externalIds":{}}]}`
	withSemanticServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, resp)
	})

	src := NewSemanticScholarSource(nil, "", "")
	papers, err := src.Search(context.Background(), "test", 10, nil, nil, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if papers[0].Source != "semantic_scholar" {
		t.Errorf("Source = %q, want %q", papers[0].Source, "semantic_scholar")
	}
}

func TestSemanticScholarSource_Name(t *testing.T) {
	src := NewSemanticScholarSource(nil, "", "")
	if got := src.Name(); got != "semantic_scholar" {
		t.Errorf("Name() = %q, want %q", got, "semantic_scholar")
	}
}

func TestBuildYearRange(t *testing.T) {
	y2020, y2023 := 2020, 2023
	tests := []struct {
		name string
		from *int
		to   *int
		want string
	}{
		{"both set", &y2020, &y2023, "2020-2023"},
		{"from only", &y2020, nil, "2020-"},
		{"to only", nil, &y2023, "-2023"},
		{"neither", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildYearRange(tt.from, tt.to)
			if got != tt.want {
				t.Errorf("buildYearRange() = %q, want %q", got, tt.want)
			}
		})
	}
}
