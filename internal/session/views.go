// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/paper-search/internal/workflow"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// resultPayloadMaxPapers caps how many papers a serialized ResultReview
// payload carries before truncation.
const resultPayloadMaxPapers = 30

// Snapshot is the wire-facing view of a WorkflowSession at one instant
// (§4.10, §6).
type Snapshot struct {
	SessionID            string         `json:"session_id"`
	Query                string         `json:"query"`
	IsComplete           bool           `json:"is_complete"`
	Error                string         `json:"error,omitempty"`
	HasPendingCheckpoint bool           `json:"has_pending_checkpoint"`
	CheckpointKind       string         `json:"checkpoint_kind,omitempty"`
	CheckpointID         string         `json:"checkpoint_id,omitempty"`
	Iteration            int            `json:"iteration,omitempty"`
	CheckpointPayload    map[string]any `json:"checkpoint_payload,omitempty"`
	UserActionRequired   bool           `json:"user_action_required,omitempty"`
	UserQuestion         string         `json:"user_question,omitempty"`
	UserOptions          []string       `json:"user_options,omitempty"`
	Summary              string         `json:"summary,omitempty"`
	Phase                string         `json:"phase,omitempty"`
	PhaseDetails         map[string]any `json:"phase_details,omitempty"`
	PhaseUpdatedAt       string         `json:"phase_updated_at,omitempty"`
	ElapsedS             float64        `json:"elapsed_s,omitempty"`
	PaperCount           int            `json:"paper_count,omitempty"`
}

func buildSnapshot(sess *WorkflowSession) Snapshot {
	sess.mu.Lock()
	isComplete := sess.isComplete
	sessErr := sess.err
	phase := sess.phase
	phaseDetails := sess.phaseDetails
	phaseUpdated := sess.phaseUpdated
	started := sess.startedAt
	result := sess.result
	sess.mu.Unlock()

	snap := Snapshot{
		SessionID:  sess.ID,
		Query:      sess.Query,
		IsComplete: isComplete,
	}
	if sessErr != nil {
		snap.Error = sessErr.Error()
	}

	if ckpt := sess.handler.currentCheckpoint(); ckpt != nil {
		snap.HasPendingCheckpoint = true
		snap.CheckpointKind = string(ckpt.Kind)
		snap.CheckpointID = fmt.Sprintf("%s:%d", ckpt.RunID, ckpt.Iteration)
		snap.Iteration = ckpt.Iteration
		snap.CheckpointPayload = SerializeCheckpointPayload(*ckpt)
		snap.UserActionRequired = true
		snap.UserQuestion = FormatCheckpointQuestion(*ckpt)
		snap.UserOptions = []string{"approve", "edit", "reject"}
		switch ckpt.Kind {
		case workflow.StrategyConfirmation:
			snap.Summary = "Strategy ready for review"
		case workflow.ResultReview:
			snap.Summary = "Results ready for review"
		default:
			snap.Summary = fmt.Sprintf("Checkpoint ready: %s", ckpt.Kind)
		}
	} else if !isComplete {
		snap.Summary = fmt.Sprintf("Workflow processing (%s)", phase)
		snap.Phase = phase
		snap.PhaseDetails = phaseDetails
		snap.PhaseUpdatedAt = types.Timestamp(phaseUpdated)
		snap.ElapsedS = elapsedSeconds(started)
	}

	if isComplete && result != nil {
		snap.PaperCount = len(result.Papers)
	}
	return snap
}

func elapsedSeconds(since time.Time) float64 {
	d := time.Since(since).Seconds()
	if d < 0 {
		d = 0
	}
	return float64(int(d*1000)) / 1000
}

func scoreDistribution(papers []types.Paper) map[string]int {
	dist := map[string]int{"high": 0, "medium": 0, "low": 0}
	for _, p := range papers {
		switch {
		case p.RelevanceScore >= 0.7:
			dist["high"]++
		case p.RelevanceScore >= 0.3:
			dist["medium"]++
		default:
			dist["low"]++
		}
	}
	return dist
}

// SerializeCheckpointPayload renders a Checkpoint's payload as a
// JSON-ready map, truncating large ResultReview paper lists to
// resultPayloadMaxPapers (§4.10).
func SerializeCheckpointPayload(ckpt workflow.Checkpoint) map[string]any {
	switch ckpt.Kind {
	case workflow.StrategyConfirmation:
		if ckpt.Strategy == nil {
			return map[string]any{"_warning": "missing strategy payload"}
		}
		return map[string]any{
			"intent": map[string]any{
				"topic":       ckpt.Strategy.Intent.Topic,
				"concepts":    ckpt.Strategy.Intent.Concepts,
				"intent_type": string(ckpt.Strategy.Intent.IntentType),
				"constraints": ckpt.Strategy.Intent.Constraints,
			},
			"strategy": map[string]any{
				"queries": ckpt.Strategy.Strategy.Queries,
				"sources": ckpt.Strategy.Strategy.Sources,
				"filters": ckpt.Strategy.Strategy.Filters,
			},
		}

	case workflow.ResultReview:
		if ckpt.Result == nil {
			return map[string]any{"_warning": "missing result payload"}
		}
		all := ckpt.Result.Collection.Papers
		truncated := len(all) > resultPayloadMaxPapers
		shown := all
		if truncated {
			shown = all[:resultPayloadMaxPapers]
		}
		papers := make([]map[string]any, len(shown))
		for i, p := range shown {
			papers[i] = map[string]any{
				"id":               p.ID,
				"doi":              p.DOI,
				"title":            p.Title,
				"authors":          p.Authors,
				"year":             p.Year,
				"venue":            p.Venue,
				"relevance_score":  p.RelevanceScore,
				"relevance_reason": p.RelevanceReason,
				"tags":             p.Tags,
			}
		}
		return map[string]any{
			"papers":             papers,
			"total_papers":       len(all),
			"truncated":          truncated,
			"score_distribution": scoreDistribution(all),
			"facets":             ckpt.Result.Collection.Facets,
			"accumulated_count":  len(ckpt.Result.AccumulatedPapers),
		}
	}

	return map[string]any{"_warning": "unsupported checkpoint kind", "raw_kind": string(ckpt.Kind)}
}

// FormatCheckpointQuestion renders a Checkpoint as a human-readable
// Markdown question for a reviewer (§4.10, §6).
func FormatCheckpointQuestion(ckpt workflow.Checkpoint) string {
	switch ckpt.Kind {
	case workflow.StrategyConfirmation:
		if ckpt.Strategy == nil {
			return "Checkpoint ready: strategy_confirmation"
		}
		var queries strings.Builder
		for i, q := range ckpt.Strategy.Strategy.Queries {
			fmt.Fprintf(&queries, "  %d. %s\n", i+1, q.BooleanQuery)
		}
		return fmt.Sprintf(
			"## Search Strategy Review\n\n"+
				"**Topic:** %s\n"+
				"**Concepts:** %s\n"+
				"**Intent:** %s\n\n"+
				"**Proposed queries:**\n%s\n"+
				"**Sources:** %s\n\n"+
				"Please choose an action:\n"+
				"1. **Approve** - proceed with searching\n"+
				"2. **Reject** - generate new queries with your feedback\n",
			ckpt.Strategy.Intent.Topic,
			strings.Join(ckpt.Strategy.Intent.Concepts, ", "),
			ckpt.Strategy.Intent.IntentType,
			queries.String(),
			strings.Join(ckpt.Strategy.Strategy.Sources, ", "),
		)

	case workflow.ResultReview:
		if ckpt.Result == nil {
			return "Checkpoint ready: result_review"
		}
		return formatResultReview(*ckpt.Result)
	}
	return fmt.Sprintf("Checkpoint ready: %s", ckpt.Kind)
}

func formatResultReview(payload workflow.ResultPayload) string {
	papers := payload.Collection.Papers
	n := len(papers)
	topN := papers
	if len(topN) > 15 {
		topN = topN[:15]
	}

	var detail strings.Builder
	for i, p := range topN {
		yearS := "N/A"
		if p.Year != nil {
			yearS = fmt.Sprintf("%d", *p.Year)
		}
		doiS := orDash(p.DOI, "N/A")
		venueS := orDash(p.Venue, "N/A")
		fmt.Fprintf(&detail, "  %d. **[%.2f]** %s\n     DOI: %s | Year: %s | Venue: %s",
			i+1, p.RelevanceScore, p.Title, doiS, yearS, venueS)
		if len(p.Tags) > 0 {
			tags := make([]string, len(p.Tags))
			for j, t := range p.Tags {
				tags[j] = string(t)
			}
			fmt.Fprintf(&detail, " | Tags: %s", strings.Join(tags, ", "))
		}
		if p.RelevanceReason != "" {
			fmt.Fprintf(&detail, "\n     Reason: %s", p.RelevanceReason)
		}
		detail.WriteString("\n")
	}

	dist := scoreDistribution(papers)
	distText := fmt.Sprintf("\n**Score distribution:** High (>=0.7): %d, Medium (0.3-0.7): %d, Low (<0.3): %d",
		dist["high"], dist["medium"], dist["low"])

	var facetParts []string
	facets := payload.Collection.Facets
	if len(facets.ByVenue) > 0 {
		var items []string
		for k, v := range facets.ByVenue {
			items = append(items, fmt.Sprintf("%s: %d", k, v))
		}
		facetParts = append(facetParts, "**Venues:** "+strings.Join(items, ", "))
	}
	if len(facets.TopAuthors) > 0 {
		top := facets.TopAuthors
		if len(top) > 10 {
			top = top[:10]
		}
		facetParts = append(facetParts, "**Top authors:** "+strings.Join(top, ", "))
	}
	if len(facets.KeyThemes) > 0 {
		facetParts = append(facetParts, "**Key themes:** "+strings.Join(facets.KeyThemes, ", "))
	}

	remaining := n - len(topN)
	moreText := ""
	if remaining > 0 {
		moreText = fmt.Sprintf("\n... and %d more papers\n", remaining)
	}

	var fullList strings.Builder
	fullList.WriteString("\n**Complete paper list:**\n")
	for i, p := range papers {
		fmt.Fprintf(&fullList, "  %d. [%.2f] %s | DOI: %s\n", i+1, p.RelevanceScore, p.Title, orDash(p.DOI, "-"))
	}

	return fmt.Sprintf(
		"## Search Results Review\n\n"+
			"Found **%d papers** (showing top %d in detail):\n\n"+
			"%s\n%s\n"+
			"%s\n\n"+
			"%s\n\n"+
			"%s\n\n"+
			"Please choose an action:\n"+
			"1. **Approve** - accept results and finish\n"+
			"2. **Reject** - search again with your feedback\n",
		n, len(topN), detail.String(), moreText, distText, strings.Join(facetParts, "\n"), fullList.String(),
	)
}

func orDash(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
