// Package lock defines a short-lived distributed lock used to keep two
// approvers from racing on the same report.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotObtained is returned when the key is held by someone else.
var ErrNotObtained = errors.New("lock not obtained")

// Locker obtains named locks.
type Locker interface {
	// Obtain acquires key for ttl. Returns ErrNotObtained when it is held.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Noop never contends. Used when no Redis is configured; correctness then
// rests on row locks alone.
type Noop struct{}

// Obtain implements Locker.
func (Noop) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Release(context.Context) error { return nil }
