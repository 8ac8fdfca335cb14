// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/paper-search/internal/llm"
	"github.com/mesh-intelligence/paper-search/internal/pipeline"
	"github.com/mesh-intelligence/paper-search/internal/sources"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// ProgressReporter receives a phase name and arbitrary details as a run
// advances. Implementations must not block; a slow reporter stalls the
// whole run.
type ProgressReporter func(phase string, details map[string]any)

// SearchWorkflow orchestrates the six pipeline stages in sequence --
// intent parsing, query building, searching, deduplication, relevance
// scoring, result organizing -- and supports pausing at checkpoints and
// iterating on reviewer feedback (§4.9).
type SearchWorkflow struct {
	intentParser      *pipeline.IntentParser
	queryBuilder      *pipeline.QueryBuilder
	searcher          *pipeline.Searcher
	deduplicator      *pipeline.Deduplicator
	relevanceScorer   *pipeline.RelevanceScorer
	resultOrganizer   *pipeline.ResultOrganizer
	checkpointHandler Handler

	maxIterations            int
	enableStrategyCheckpoint bool
	progressReporter         ProgressReporter
}

// Option configures a SearchWorkflow at construction time.
type Option func(*SearchWorkflow)

// WithCheckpointHandler installs a Handler. Without one, every
// checkpoint auto-approves and the run completes after one iteration.
func WithCheckpointHandler(h Handler) Option {
	return func(w *SearchWorkflow) { w.checkpointHandler = h }
}

// WithMaxIterations bounds how many search/review cycles a run may take.
func WithMaxIterations(n int) Option {
	return func(w *SearchWorkflow) {
		if n > 0 {
			w.maxIterations = n
		}
	}
}

// WithStrategyCheckpoint toggles whether STRATEGY_CONFIRMATION pauses
// occur before searching.
func WithStrategyCheckpoint(enabled bool) Option {
	return func(w *SearchWorkflow) { w.enableStrategyCheckpoint = enabled }
}

// WithProgressReporter installs a ProgressReporter.
func WithProgressReporter(r ProgressReporter) Option {
	return func(w *SearchWorkflow) { w.progressReporter = r }
}

// NewSearchWorkflow constructs a SearchWorkflow from its six stages.
func NewSearchWorkflow(
	intentParser *pipeline.IntentParser,
	queryBuilder *pipeline.QueryBuilder,
	searcher *pipeline.Searcher,
	deduplicator *pipeline.Deduplicator,
	relevanceScorer *pipeline.RelevanceScorer,
	resultOrganizer *pipeline.ResultOrganizer,
	opts ...Option,
) *SearchWorkflow {
	w := &SearchWorkflow{
		intentParser:             intentParser,
		queryBuilder:             queryBuilder,
		searcher:                 searcher,
		deduplicator:             deduplicator,
		relevanceScorer:          relevanceScorer,
		resultOrganizer:          resultOrganizer,
		maxIterations:            5,
		enableStrategyCheckpoint: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *SearchWorkflow) reportProgress(phase string, details map[string]any) {
	if w.progressReporter == nil {
		return
	}
	w.progressReporter(phase, details)
}

// Run executes a full search workflow for userInput, pausing at
// checkpoints via the configured Handler and iterating on reviewer
// feedback up to MaxIterations.
func (w *SearchWorkflow) Run(ctx context.Context, userInput string) (types.PaperCollection, error) {
	runID := newRunID()
	state := types.NewWorkflowState()

	w.reportProgress("intent_parsing", nil)
	t0 := time.Now()
	intent, err := w.intentParser.Parse(ctx, userInput)
	if err != nil {
		return types.PaperCollection{}, err
	}
	slog.Info("intent parsing completed", "elapsed", time.Since(t0))

	var lastCollection *types.PaperCollection

	for state.CurrentIteration < w.maxIterations {
		w.reportProgress("query_building", map[string]any{"iteration": state.CurrentIteration})
		qbInput := types.QueryBuilderInput{
			Intent:             intent,
			PreviousStrategies: state.PreviousStrategies(),
			UserFeedback:       state.LatestFeedback(),
		}
		t0 = time.Now()
		strategy := w.queryBuilder.Build(ctx, qbInput)
		slog.Info("query building completed", "elapsed", time.Since(t0))

		if w.enableStrategyCheckpoint && w.checkpointHandler != nil {
			w.reportProgress("waiting_checkpoint", map[string]any{
				"checkpoint_kind": StrategyConfirmation,
				"iteration":       state.CurrentIteration,
			})
			ckpt := Checkpoint{
				Kind:      StrategyConfirmation,
				Strategy:  &StrategyPayload{Intent: intent, Strategy: strategy},
				RunID:     runID,
				Iteration: state.CurrentIteration,
				Timestamp: types.Timestamp(time.Now()),
			}
			decision, err := w.checkpointHandler.Handle(ctx, ckpt)
			if err != nil {
				return types.PaperCollection{}, err
			}

			switch decision.Action {
			case Edit:
				if revised, ok := decodeStrategy(decision.RevisedData); ok {
					strategy = revised
				}
			case Reject:
				feedback := coerceFeedback(decision)
				state.RecordIteration(strategy, 0, feedback)
				w.reportProgress("iterating", map[string]any{"next_iteration": state.CurrentIteration})
				continue
			}
		}

		w.reportProgress("searching", map[string]any{"iteration": state.CurrentIteration})
		t0 = time.Now()
		raw := w.searcher.Search(ctx, strategy)
		slog.Info("searching completed", "elapsed", time.Since(t0), "results", len(raw))

		w.reportProgress("deduplicating", map[string]any{"iteration": state.CurrentIteration, "raw_count": len(raw)})
		t0 = time.Now()
		deduped := w.deduplicator.Deduplicate(ctx, raw)
		slog.Info("deduplication completed", "elapsed", time.Since(t0), "from", len(raw), "to", len(deduped))

		w.reportProgress("scoring", map[string]any{"iteration": state.CurrentIteration, "candidate_count": len(deduped)})
		t0 = time.Now()
		scored := w.relevanceScorer.Score(ctx, deduped, intent)
		slog.Info("scoring completed", "elapsed", time.Since(t0), "papers", len(scored))

		w.reportProgress("organizing", map[string]any{"iteration": state.CurrentIteration, "scored_count": len(scored)})
		t0 = time.Now()
		collection := w.resultOrganizer.Organize(scored, strategy, userInput)
		slog.Info("organizing completed", "elapsed", time.Since(t0))
		lastCollection = &collection

		var decision Decision
		if w.checkpointHandler != nil {
			w.reportProgress("waiting_checkpoint", map[string]any{
				"checkpoint_kind": ResultReview,
				"iteration":       state.CurrentIteration,
				"paper_count":     len(collection.Papers),
			})
			ckpt := Checkpoint{
				Kind:      ResultReview,
				Result:    &ResultPayload{Collection: collection, AccumulatedPapers: append([]types.Paper{}, state.AccumulatedPapers...)},
				RunID:     runID,
				Iteration: state.CurrentIteration,
				Timestamp: types.Timestamp(time.Now()),
			}
			decision, err = w.checkpointHandler.Handle(ctx, ckpt)
			if err != nil {
				return types.PaperCollection{}, err
			}
		} else {
			decision = Decision{Action: Approve}
		}

		if decision.Action == Approve {
			state.RecordIteration(strategy, len(collection.Papers), nil)
			state.IsComplete = true
			w.reportProgress("completed", map[string]any{"iteration": state.CurrentIteration, "paper_count": len(collection.Papers)})
			return mergeAccumulated(collection, state.AccumulatedPapers), nil
		}

		feedback := coerceFeedback(decision)
		accumulateRelevant(state, collection, feedback)
		state.RecordIteration(strategy, len(collection.Papers), feedback)
		w.reportProgress("iterating", map[string]any{"next_iteration": state.CurrentIteration})
	}

	state.IsComplete = true
	w.reportProgress("completed", map[string]any{"reason": "max_iterations_reached"})
	if lastCollection != nil {
		return mergeAccumulated(*lastCollection, state.AccumulatedPapers), nil
	}
	return types.PaperCollection{
		Metadata: types.SearchMetadata{Query: userInput, SearchStrategy: types.SearchStrategy{}},
	}, nil
}

func decodeStrategy(data map[string]any) (types.SearchStrategy, bool) {
	if data == nil {
		return types.SearchStrategy{}, false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return types.SearchStrategy{}, false
	}
	var strategy types.SearchStrategy
	if err := json.Unmarshal(raw, &strategy); err != nil {
		return types.SearchStrategy{}, false
	}
	if len(strategy.Queries) == 0 && len(strategy.Sources) == 0 {
		return types.SearchStrategy{}, false
	}
	return strategy, true
}

func accumulateRelevant(state *types.WorkflowState, collection types.PaperCollection, feedback *types.UserFeedback) {
	if feedback == nil || len(feedback.MarkedRelevant) == 0 {
		return
	}
	var matching []types.Paper
	for _, p := range collection.Papers {
		if feedback.MarkedRelevant[p.ID] {
			matching = append(matching, p)
		}
	}
	state.AddAccumulated(matching)
}

func mergeAccumulated(collection types.PaperCollection, accumulated []types.Paper) types.PaperCollection {
	if len(accumulated) == 0 {
		return collection
	}
	present := make(map[string]bool, len(collection.Papers))
	for _, p := range collection.Papers {
		present[p.ID] = true
	}
	var extras []types.Paper
	for _, p := range accumulated {
		if !present[p.ID] {
			extras = append(extras, p)
		}
	}
	if len(extras) == 0 {
		return collection
	}
	collection.Papers = append(append([]types.Paper{}, collection.Papers...), extras...)
	return collection
}

// FromConfig wires a SearchWorkflow from an AppConfig: an LLM provider,
// every enabled search source, and the six pipeline stages.
func FromConfig(ctx context.Context, cfg types.AppConfig, opts ...Option) (*SearchWorkflow, error) {
	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	var srcs []sources.SearchSource
	if srcCfg, ok := cfg.Sources["serpapi_scholar"]; ok && srcCfg.Enabled {
		var cache *sources.ResolutionCache
		if cfg.Cache.Path != "" {
			cache, err = sources.NewResolutionCache(cfg.Cache.Path)
			if err != nil {
				return nil, err
			}
		}
		srcs = append(srcs, sources.NewScholarSource(srcCfg.APIKey, srcCfg.RateLimit, cfg.Timeout, 3, cache))
	}
	if srcCfg, ok := cfg.Sources["arxiv"]; ok && srcCfg.Enabled {
		srcs = append(srcs, sources.NewArxivSource(nil, cfg.UserAgent))
	}
	if srcCfg, ok := cfg.Sources["semantic_scholar"]; ok && srcCfg.Enabled {
		srcs = append(srcs, sources.NewSemanticScholarSource(nil, srcCfg.APIKey, cfg.UserAgent))
	}

	available := make([]string, len(srcs))
	for i, s := range srcs {
		available[i] = s.Name()
	}

	const defaultMinRelevance = 0.3

	wf := NewSearchWorkflow(
		pipeline.NewIntentParser(provider, cfg.Domain),
		pipeline.NewQueryBuilder(provider, cfg.Domain, available),
		pipeline.NewSearcher(srcs, cfg.SearchMaxCalls),
		pipeline.NewDeduplicator(provider, cfg.DedupEnableLLMPass, cfg.DedupLLMMaxCandidates),
		pipeline.NewRelevanceScorer(provider, cfg.RelevanceBatchSize, cfg.RelevanceMaxConcurrency),
		pipeline.NewResultOrganizer(defaultMinRelevance),
		opts...,
	)
	if cfg.MaxIterations > 0 {
		WithMaxIterations(cfg.MaxIterations)(wf)
	}
	WithStrategyCheckpoint(cfg.EnableStrategyCheckpoint)(wf)
	return wf, nil
}
