// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// IntentType classifies what kind of research the user is after.
type IntentType string

const (
	IntentSurvey   IntentType = "survey"
	IntentMethod   IntentType = "method"
	IntentDataset  IntentType = "dataset"
	IntentBaseline IntentType = "baseline"
)

// PaperTag classifies the nature of a paper's contribution. Closed set;
// unrecognized values are dropped rather than rejected (§4.7).
type PaperTag string

const (
	TagMethod      PaperTag = "method"
	TagReview      PaperTag = "review"
	TagEmpirical   PaperTag = "empirical"
	TagTheoretical PaperTag = "theoretical"
	TagDataset     PaperTag = "dataset"
)

func validPaperTag(t PaperTag) bool {
	switch t {
	case TagMethod, TagReview, TagEmpirical, TagTheoretical, TagDataset:
		return true
	}
	return false
}

// Constraints bounds a search: year range, language, and a result cap.
// Shared shape between ParsedIntent.Constraints and SearchStrategy.Filters.
type Constraints struct {
	YearFrom   *int   `json:"year_from,omitempty" yaml:"year_from,omitempty"`
	YearTo     *int   `json:"year_to,omitempty" yaml:"year_to,omitempty"`
	Language   string `json:"language,omitempty" yaml:"language,omitempty"`
	MaxResults int    `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

// ParsedIntent is the Intent Parser's output (§4.3).
type ParsedIntent struct {
	Topic       string      `json:"topic"`
	Concepts    []string    `json:"concepts"`
	IntentType  IntentType  `json:"intent_type"`
	Constraints Constraints `json:"constraints"`
}

// SearchQuery is one query within a SearchStrategy.
type SearchQuery struct {
	Keywords     []string `json:"keywords"`
	BooleanQuery string   `json:"boolean_query"`
}

// SearchStrategy is the Query Builder's output (§4.4).
type SearchStrategy struct {
	Queries []SearchQuery `json:"queries"`
	Sources []string      `json:"sources"`
	Filters Constraints   `json:"filters"`
}

// UserFeedback carries a decider's free-text note, relevance marks, and
// optional revised constraints back into the next iteration (§3).
//
// MarkedRelevant/MarkedIrrelevant are sets of paper IDs on the wire (a
// JSON array, per §3's "set of paper IDs"); internally they're kept as
// a map for O(1) membership checks, so UserFeedback carries its own
// MarshalJSON/UnmarshalJSON to bridge the two shapes.
type UserFeedback struct {
	FreeTextFeedback string
	MarkedRelevant   map[string]bool
	MarkedIrrelevant map[string]bool
	RevisedYearFrom  *int
	RevisedYearTo    *int
}

type userFeedbackWire struct {
	FreeTextFeedback string   `json:"free_text_feedback,omitempty"`
	MarkedRelevant   []string `json:"marked_relevant,omitempty"`
	MarkedIrrelevant []string `json:"marked_irrelevant,omitempty"`
	RevisedYearFrom  *int     `json:"revised_year_from,omitempty"`
	RevisedYearTo    *int     `json:"revised_year_to,omitempty"`
}

func idSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func idList(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// MarshalJSON renders MarkedRelevant/MarkedIrrelevant as JSON arrays.
func (f UserFeedback) MarshalJSON() ([]byte, error) {
	return json.Marshal(userFeedbackWire{
		FreeTextFeedback: f.FreeTextFeedback,
		MarkedRelevant:   idList(f.MarkedRelevant),
		MarkedIrrelevant: idList(f.MarkedIrrelevant),
		RevisedYearFrom:  f.RevisedYearFrom,
		RevisedYearTo:    f.RevisedYearTo,
	})
}

// UnmarshalJSON accepts MarkedRelevant/MarkedIrrelevant as JSON arrays.
func (f *UserFeedback) UnmarshalJSON(data []byte) error {
	var wire userFeedbackWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	f.FreeTextFeedback = wire.FreeTextFeedback
	f.MarkedRelevant = idSet(wire.MarkedRelevant)
	f.MarkedIrrelevant = idSet(wire.MarkedIrrelevant)
	f.RevisedYearFrom = wire.RevisedYearFrom
	f.RevisedYearTo = wire.RevisedYearTo
	return nil
}

// QueryBuilderInput is what the engine hands the Query Builder each
// iteration (§4.4).
type QueryBuilderInput struct {
	Intent             ParsedIntent
	PreviousStrategies []SearchStrategy
	UserFeedback       *UserFeedback
}

// RawPaper is a normalized search-result record, before dedup/scoring
// (§4.1, §4.6).
type RawPaper struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Authors       []string       `json:"authors"`
	Year          *int           `json:"year,omitempty"`
	Venue         string         `json:"venue,omitempty"`
	DOI           string         `json:"doi,omitempty"`
	Snippet       string         `json:"snippet,omitempty"`
	FullTextURL   string         `json:"full_text_url,omitempty"`
	CitationCount int            `json:"citation_count"`
	Source        string         `json:"source"`
	RawData       map[string]any `json:"-"`
}

// ScoredPaper is a RawPaper annotated with a relevance score (§4.7).
type ScoredPaper struct {
	Paper           RawPaper   `json:"paper"`
	RelevanceScore  float64    `json:"relevance_score"`
	RelevanceReason string     `json:"relevance_reason"`
	Tags            []PaperTag `json:"tags"`
}

// ClampScore clamps s into [0.0, 1.0].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// FilterValidTags drops any tag outside the closed PaperTag set.
func FilterValidTags(tags []PaperTag) []PaperTag {
	out := make([]PaperTag, 0, len(tags))
	for _, t := range tags {
		if validPaperTag(t) {
			out = append(out, t)
		}
	}
	return out
}

// Paper is the output-facing projection of a ScoredPaper (§4.8).
type Paper struct {
	ID              string     `json:"id"`
	DOI             string     `json:"doi,omitempty"`
	Title           string     `json:"title"`
	Authors         []string   `json:"authors"`
	Year            *int       `json:"year,omitempty"`
	Venue           string     `json:"venue,omitempty"`
	Snippet         string     `json:"snippet,omitempty"`
	FullTextURL     string     `json:"full_text_url,omitempty"`
	CitationCount   int        `json:"citation_count"`
	RelevanceScore  float64    `json:"relevance_score"`
	RelevanceReason string     `json:"relevance_reason"`
	Tags            []PaperTag `json:"tags,omitempty"`
}

// Facets summarize a PaperCollection (§4.8).
type Facets struct {
	ByYear     map[int]int    `json:"by_year"`
	ByVenue    map[string]int `json:"by_venue"`
	TopAuthors []string       `json:"top_authors"`
	KeyThemes  []string       `json:"key_themes"`
}

// SearchMetadata records the query context behind a PaperCollection.
type SearchMetadata struct {
	Query          string         `json:"query"`
	SearchStrategy SearchStrategy `json:"search_strategy"`
	TotalFound     int            `json:"total_found"`
}

// PaperCollection is the Result Organizer's output, and the engine's
// per-iteration and final result type (§4.8, §4.9).
type PaperCollection struct {
	Metadata SearchMetadata `json:"metadata"`
	Papers   []Paper        `json:"papers"`
	Facets   Facets         `json:"facets"`
}

// FindPaper returns the index of the paper with the given id, or -1.
func (c PaperCollection) FindPaper(id string) int {
	for i, p := range c.Papers {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// IterationRecord is one entry in WorkflowState.History.
type IterationRecord struct {
	Iteration   int
	Strategy    SearchStrategy
	ResultCount int
	Feedback    *UserFeedback
}

// WorkflowState tracks engine progress across iterations (§3, §4.9).
type WorkflowState struct {
	CurrentIteration  int
	History           []IterationRecord
	AccumulatedPapers []Paper
	IsComplete        bool

	accumulatedIDs map[string]bool
}

// NewWorkflowState returns a zero-valued, ready-to-use WorkflowState.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{accumulatedIDs: map[string]bool{}}
}

// RecordIteration appends an IterationRecord and advances the iteration
// counter.
func (s *WorkflowState) RecordIteration(strategy SearchStrategy, resultCount int, feedback *UserFeedback) {
	s.History = append(s.History, IterationRecord{
		Iteration:   s.CurrentIteration,
		Strategy:    strategy,
		ResultCount: resultCount,
		Feedback:    feedback,
	})
	s.CurrentIteration++
}

// PreviousStrategies returns the strategy of every recorded iteration, in
// order.
func (s *WorkflowState) PreviousStrategies() []SearchStrategy {
	out := make([]SearchStrategy, 0, len(s.History))
	for _, h := range s.History {
		out = append(out, h.Strategy)
	}
	return out
}

// LatestFeedback returns the most recent iteration's feedback, or nil.
func (s *WorkflowState) LatestFeedback() *UserFeedback {
	if len(s.History) == 0 {
		return nil
	}
	return s.History[len(s.History)-1].Feedback
}

// AddAccumulated appends papers not already present (by id) to
// AccumulatedPapers.
func (s *WorkflowState) AddAccumulated(papers []Paper) {
	if s.accumulatedIDs == nil {
		s.accumulatedIDs = map[string]bool{}
	}
	for _, p := range papers {
		if s.accumulatedIDs[p.ID] {
			continue
		}
		s.accumulatedIDs[p.ID] = true
		s.AccumulatedPapers = append(s.AccumulatedPapers, p)
	}
}

// Timestamp returns the current time formatted as RFC 3339, matching the
// wire format the session layer uses for every serialized instant.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
