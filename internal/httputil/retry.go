// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryBaseUnit controls the unit duration of the jittered exponential
// backoff. Tests override this to avoid real sleeps.
var RetryBaseUnit = 1 * time.Second

const defaultMaxRetries = 3

// transientStatus reports whether status is a transient, retryable HTTP
// status code (429 Too Many Requests, 500 Internal Server Error, 503
// Service Unavailable).
func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusInternalServerError ||
		status == http.StatusServiceUnavailable
}

// permanentStatus reports whether status indicates a non-retryable
// provider-level failure (401 Unauthorized, 403 Forbidden).
func permanentStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// Backoff returns the jittered exponential backoff delay for the given
// zero-based retry attempt: min(16, 2^attempt) seconds plus up to one
// second of jitter.
func Backoff(attempt int) time.Duration {
	base := math.Min(16, math.Pow(2, float64(attempt)))
	jitter := rand.Float64()
	return time.Duration((base + jitter) * float64(RetryBaseUnit))
}

// DoWithRetry executes an HTTP request, retrying transient failures
// (429/500/503 responses, and transport-level errors such as a dial or
// read timeout) with jittered exponential backoff. A 401 or 403 response
// is returned immediately without retrying, since retrying cannot help an
// authentication failure.
//
// When maxRetries is 0 the default (3) is used. On each retry the
// response body is drained and closed before sleeping. If the context is
// cancelled during a backoff wait the function returns ctx.Err(). After
// exhausting retries the last response (or error) is returned so the
// caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			if attempt >= maxRetries {
				return nil, lastErr
			}
			if waitErr := sleepBackoff(ctx, attempt); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if permanentStatus(resp.StatusCode) || !transientStatus(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if waitErr := sleepBackoff(ctx, attempt); waitErr != nil {
			return nil, waitErr
		}
	}
}

func sleepBackoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(Backoff(attempt)):
		return nil
	}
}
