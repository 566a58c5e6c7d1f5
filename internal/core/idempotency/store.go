// Package idempotency defines how state-changing requests are deduplicated
// by a client-supplied key.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL is how long a completed response is replayed.
const DefaultTTL = 24 * time.Hour

// Replay is a stored response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists idempotency keys.
type Store interface {
	// AcquireKey claims key for a request. It returns a replay when the key
	// already completed, IDEMPOTENCY_CONFLICT while another request holds it
	// and IDEMPOTENCY_MISMATCH when the key was used for a different request.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)

	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error

	// ReleaseKey forgets key so the client may retry the request.
	ReleaseKey(ctx context.Context, key string) error
}

// NormalizeReplay fills defaults of records stored without a status or
// content type.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = 200
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
