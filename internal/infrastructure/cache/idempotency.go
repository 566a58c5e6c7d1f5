package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/idempotency"
)

// staleAfter is how long a pending key may go untouched before another
// request may take it over.
const staleAfter = time.Minute

type keyStatus string

const (
	statusPending keyStatus = "pending"
	statusSuccess keyStatus = "success"
	statusFailed  keyStatus = "failed"
)

// keyRecord is the JSON value stored under an idempotency key.
type keyRecord struct {
	UserID      string    `json:"u"`
	Operation   string    `json:"op"`
	RequestHash string    `json:"h"`
	Status      keyStatus `json:"s"`
	StatusCode  int       `json:"c,omitempty"`
	ContentType string    `json:"ct,omitempty"`
	Body        []byte    `json:"b,omitempty"`
	UpdatedAt   time.Time `json:"t"`
}

// IdempotencyStore implements idempotency.Store on Redis.
type IdempotencyStore struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a Redis idempotency store.
func NewIdempotencyStore(rdb redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl, prefix: "shopfloor:idem:", now: time.Now}
}

func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	fresh := keyRecord{
		UserID:      userID,
		Operation:   operation,
		RequestHash: requestHash,
		Status:      statusPending,
		UpdatedAt:   s.now().UTC(),
	}
	raw, err := json.Marshal(fresh)
	if err != nil {
		return nil, err
	}

	ok, err := s.rdb.SetNX(ctx, s.prefix+key, raw, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	stored, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return s.AcquireKey(ctx, key, userID, operation, requestHash)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	var rec keyRecord
	if err := json.Unmarshal(stored, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}

	replay, takeOver, err := decide(key, rec, fresh, s.now())
	if err != nil || !takeOver {
		return replay, err
	}
	if err := s.rdb.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("reclaim stale key: %w", err)
	}
	return nil, nil
}

// decide compares a stored record with a new request. takeOver is set
// when a stale pending record may be replaced.
func decide(key string, stored, req keyRecord, now time.Time) (*idempotency.Replay, bool, error) {
	if stored.UserID != req.UserID || stored.Operation != req.Operation || stored.RequestHash != req.RequestHash {
		return nil, false, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", stored.Operation).
			WithDetail("request_operation", req.Operation)
	}

	switch stored.Status {
	case statusSuccess, statusFailed:
		return idempotency.NormalizeReplay(&idempotency.Replay{
			StatusCode:  stored.StatusCode,
			ContentType: stored.ContentType,
			Body:        stored.Body,
		}), false, nil
	}

	if now.Sub(stored.UpdatedAt) > staleAfter {
		return nil, true, nil
	}
	return nil, false, apperror.NewIdempotencyConflict(key)
}

func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, statusSuccess, statusCode, contentType, body)
}

func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, statusFailed, statusCode, contentType, body)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status keyStatus, statusCode int, contentType string, body []byte) error {
	stored, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		return fmt.Errorf("read idempotency key: %w", err)
	}

	var rec keyRecord
	if err := json.Unmarshal(stored, &rec); err != nil {
		return fmt.Errorf("decode idempotency key: %w", err)
	}
	rec.Status = status
	rec.StatusCode = statusCode
	rec.ContentType = contentType
	rec.Body = body
	rec.UpdatedAt = s.now().UTC()

	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, s.ttl).Err()
}

// ReleaseKey drops key so the request can be retried.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
