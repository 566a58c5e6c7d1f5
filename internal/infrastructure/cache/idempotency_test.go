package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/apperror"
)

func TestDecide(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	req := keyRecord{UserID: "u1", Operation: "POST /api/v1/reports", RequestHash: "abc", Status: statusPending, UpdatedAt: now}

	t.Run("completed key replays", func(t *testing.T) {
		stored := req
		stored.Status = statusSuccess
		stored.StatusCode = 201
		stored.Body = []byte(`{"ok":true}`)

		replay, takeOver, err := decide("k", stored, req, now)
		require.NoError(t, err)
		assert.False(t, takeOver)
		require.NotNil(t, replay)
		assert.Equal(t, 201, replay.StatusCode)
		assert.Equal(t, "application/json", replay.ContentType)
		assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
	})

	t.Run("different body is a mismatch", func(t *testing.T) {
		stored := req
		stored.RequestHash = "other"

		_, _, err := decide("k", stored, req, now)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "Idempotency key mismatch", appErr.Message)
	})

	t.Run("running key conflicts", func(t *testing.T) {
		stored := req
		stored.UpdatedAt = now.Add(-10 * time.Second)

		_, _, err := decide("k", stored, req, now)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeIdempotency, appErr.Code)
		assert.Equal(t, "Operation already in progress or completed", appErr.Message)
	})

	t.Run("stale pending key is taken over", func(t *testing.T) {
		stored := req
		stored.UpdatedAt = now.Add(-2 * time.Minute)

		replay, takeOver, err := decide("k", stored, req, now)
		require.NoError(t, err)
		assert.True(t, takeOver)
		assert.Nil(t, replay)
	})
}
