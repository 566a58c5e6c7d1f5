package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"shopfloor/internal/core/lock"
)

// Locker implements lock.Locker with redislock.
type Locker struct {
	client *redislock.Client
	prefix string
}

var _ lock.Locker = (*Locker)(nil)

// NewLocker creates a locker. Keys are prefixed so several ledgers can
// share one Redis.
func NewLocker(rdb redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: redislock.New(rdb), prefix: prefix}
}

// Obtain tries once; a held key yields lock.ErrNotObtained.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (lock.Lock, error) {
	held, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, lock.ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return redisLock{held}, nil
}

type redisLock struct {
	l *redislock.Lock
}

// Release ignores locks that already expired.
func (r redisLock) Release(ctx context.Context) error {
	if err := r.l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}
