// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow implements the checkpoint-driven orchestration that
// sequences the six pipeline stages into iterative, human-reviewable
// search runs (§4.9).
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// CheckpointKind identifies where in a run a Checkpoint was raised.
type CheckpointKind string

const (
	StrategyConfirmation CheckpointKind = "strategy_confirmation"
	ResultReview         CheckpointKind = "result_review"
)

// DecisionAction is the reviewer's response to a Checkpoint.
type DecisionAction string

const (
	Approve DecisionAction = "approve"
	Edit    DecisionAction = "edit"
	Reject  DecisionAction = "reject"
)

// StrategyPayload accompanies a StrategyConfirmation checkpoint.
type StrategyPayload struct {
	Intent   types.ParsedIntent
	Strategy types.SearchStrategy
}

// ResultPayload accompanies a ResultReview checkpoint.
type ResultPayload struct {
	Collection        types.PaperCollection
	AccumulatedPapers []types.Paper
}

// Checkpoint is a pause point offered to a reviewer mid-run. Exactly one
// of Strategy/Result is populated, selected by Kind.
type Checkpoint struct {
	Kind      CheckpointKind
	Strategy  *StrategyPayload
	Result    *ResultPayload
	RunID     string
	Iteration int
	Timestamp string
}

// Signature returns a value that changes every time a materially
// different checkpoint is raised, used to detect whether a session has
// advanced past a previously observed checkpoint.
func (c Checkpoint) Signature() string {
	return fmt.Sprintf("%s:%d:%s", c.RunID, c.Iteration, c.Kind)
}

// Decision is a reviewer's response to a Checkpoint.
type Decision struct {
	Action      DecisionAction
	RevisedData map[string]any
	Note        string
}

// Handler pauses a running workflow at a Checkpoint and blocks until a
// Decision is available.
type Handler interface {
	Handle(ctx context.Context, ckpt Checkpoint) (Decision, error)
}

func newRunID() string { return uuid.NewString() }

// coerceFeedback converts a Decision into UserFeedback for the next
// iteration. A RevisedData shaped like UserFeedback (marked_relevant/
// marked_irrelevant/free_text_feedback, per the wire contract) wins;
// otherwise the decision's free-text Note carries through.
func coerceFeedback(d Decision) *types.UserFeedback {
	if fb, ok := decodeFeedback(d.RevisedData); ok {
		return fb
	}
	return &types.UserFeedback{FreeTextFeedback: d.Note}
}

func decodeFeedback(data map[string]any) (*types.UserFeedback, bool) {
	if data == nil {
		return nil, false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	var fb types.UserFeedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil, false
	}
	if fb.FreeTextFeedback == "" && len(fb.MarkedRelevant) == 0 && len(fb.MarkedIrrelevant) == 0 &&
		fb.RevisedYearFrom == nil && fb.RevisedYearTo == nil {
		return nil, false
	}
	return &fb, true
}
