// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides a uniform contract over heterogeneous
// text-generation backends (OpenAI, Anthropic, Gemini), plus tolerant JSON
// extraction shared by all three.
package llm

import "fmt"

// ErrorKind classifies a model-client error so callers can branch on
// recovery policy without type-asserting a concrete error type.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindResponse  ErrorKind = "response"
	KindGeneric   ErrorKind = "generic"
)

// Error is the normalized error type every backend converges on.
type Error struct {
	Kind ErrorKind
	Msg  string
	// Raw carries a truncated prefix of the raw response text for
	// diagnostics when Kind is KindResponse.
	Raw string
}

func (e *Error) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("%s: %s (raw: %s)", e.Kind, e.Msg, e.Raw)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// AuthError reports invalid or missing credentials.
func AuthError(msg string) error { return &Error{Kind: KindAuth, Msg: msg} }

// RateLimitError reports a 429-class response.
func RateLimitError(msg string) error { return &Error{Kind: KindRateLimit, Msg: msg} }

// ResponseError reports a response the client could not parse. raw is
// truncated to 200 bytes for diagnostics, matching the Python reference's
// truncation length.
func ResponseError(msg, raw string) error {
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return &Error{Kind: KindResponse, Msg: msg, Raw: raw}
}

// GenericError reports anything else (network failure, malformed request).
func GenericError(msg string) error { return &Error{Kind: KindGeneric, Msg: msg} }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
