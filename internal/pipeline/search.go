// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/mesh-intelligence/paper-search/internal/sources"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// Searcher fans a SearchStrategy out across the configured search sources
// and collects the successful results. An individual source failure is
// logged and dropped; it never aborts the search (§4.5).
type Searcher struct {
	sources map[string]sources.SearchSource
	order   []string

	// maxCalls bounds the total number of source calls a Searcher will
	// make across its lifetime (one Searcher per workflow run). <= 0
	// means unlimited. calls tracks how many have been attempted so far.
	maxCalls int64
	calls    atomic.Int64
}

// NewSearcher constructs a Searcher over srcs, indexed by Name(). maxCalls
// caps the total number of source calls across the Searcher's lifetime;
// <= 0 leaves it unlimited.
func NewSearcher(srcs []sources.SearchSource, maxCalls int) *Searcher {
	byName := make(map[string]sources.SearchSource, len(srcs))
	order := make([]string, 0, len(srcs))
	for _, s := range srcs {
		byName[s.Name()] = s
		order = append(order, s.Name())
	}
	return &Searcher{sources: byName, order: order, maxCalls: int64(maxCalls)}
}

// Search runs strategy against strategy.Sources, falling back to every
// configured source if none of the requested ones are available. Once
// maxCalls is reached, further source calls are skipped rather than made.
func (s *Searcher) Search(ctx context.Context, strategy types.SearchStrategy) []types.RawPaper {
	if len(strategy.Queries) == 0 {
		return nil
	}

	selected := s.resolveSources(strategy.Sources)
	if len(selected) == 0 {
		return nil
	}

	p := pool.NewWithResults[[]types.RawPaper]().WithMaxGoroutines(len(selected))
	for _, src := range selected {
		src := src
		p.Go(func() []types.RawPaper {
			if s.maxCalls > 0 && s.calls.Add(1) > s.maxCalls {
				slog.Warn("search call ceiling reached, skipping source", "source", src.Name(), "max_calls", s.maxCalls)
				return nil
			}
			papers, err := src.SearchAdvanced(ctx, strategy)
			if err != nil {
				slog.Warn("search source failed", "source", src.Name(), "error", err)
				return nil
			}
			return papers
		})
	}

	var all []types.RawPaper
	for _, r := range p.Wait() {
		all = append(all, r...)
	}
	return all
}

// resolveSources maps requested source names to configured sources,
// falling back to every configured source when none of the requested
// names are available.
func (s *Searcher) resolveSources(requested []string) []sources.SearchSource {
	var selected []sources.SearchSource
	for _, name := range requested {
		if src, ok := s.sources[name]; ok {
			selected = append(selected, src)
		}
	}
	if len(selected) > 0 {
		return selected
	}

	for _, name := range s.order {
		selected = append(selected, s.sources[name])
	}
	return selected
}
