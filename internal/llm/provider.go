// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import "context"

// Provider is the uniform contract over heterogeneous text-generation
// backends.
type Provider interface {
	// Complete returns a plain-text completion. Never returns an undefined
	// value; an empty response yields "".
	Complete(ctx context.Context, system, user string) (string, error)

	// CompleteJSON returns a parsed JSON object. schema is a hint the
	// backend may or may not honor natively.
	CompleteJSON(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error)
}
