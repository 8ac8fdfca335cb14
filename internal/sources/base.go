// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the External Search Client: one or more
// adapters over scholarly search APIs, each translating a provider's
// result shape into a types.RawPaper. The Scholar adapter is rate-limited,
// paginated and retrying; the Semantic Scholar adapter retries; the arXiv
// adapter makes a single request per search.
package sources

import (
	"context"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// SearchSource translates a free-text query or a full SearchStrategy into
// a list of RawPaper, obeying the provider's paging, rate, and
// transient-failure semantics (§4.1).
type SearchSource interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo *int, language string) ([]types.RawPaper, error)
	SearchAdvanced(ctx context.Context, strategy types.SearchStrategy) ([]types.RawPaper, error)
}

// ErrorClass distinguishes retryable from permanent source failures.
type ErrorClass string

const (
	ClassRetryable ErrorClass = "retryable"
	ClassPermanent ErrorClass = "permanent"
)

// SourceError is the error type search sources raise for provider-level
// and transport-level failures, classified so callers know whether
// retrying could help.
type SourceError struct {
	Class ErrorClass
	Msg   string
}

func (e *SourceError) Error() string { return e.Msg }

func retryableErr(msg string) error { return &SourceError{Class: ClassRetryable, Msg: msg} }
func permanentErr(msg string) error { return &SourceError{Class: ClassPermanent, Msg: msg} }

// IsRetryable reports whether err is a SourceError classified retryable.
func IsRetryable(err error) bool {
	se, ok := err.(*SourceError)
	return ok && se.Class == ClassRetryable
}
