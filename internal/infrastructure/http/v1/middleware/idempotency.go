package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfloor/internal/core/apperror"
	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/idempotency"
	"shopfloor/pkg/logger"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyBodyBytes = 1 << 20 // 1 MiB
)

// bodyRecorder keeps a copy of the response so it can be replayed.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency middleware replays the stored response of a repeated
// X-Idempotency-Key instead of running the handler again. It applies to
// POST, PUT and PATCH only.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		ctx := c.Request.Context()
		operation := c.Request.Method + " " + c.Request.URL.Path

		replay, err := store.AcquireKey(ctx, key, appctx.GetUserID(ctx), operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header(HeaderReplayed, "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec

		c.Next()

		// Render a pending error now so the stored body matches what the client sees.
		WriteError(c)

		finishKey(c, store, key, rec)
	}
}

func finishKey(c *gin.Context, store idempotency.Store, key string, rec *bodyRecorder) {
	ctx := context.WithoutCancel(c.Request.Context())
	status := rec.Status()
	contentType := rec.Header().Get("Content-Type")

	var err error
	switch {
	case status >= 200 && status < 300:
		err = store.CompleteKey(ctx, key, status, contentType, rec.body.Bytes())
	case retryable(c, status):
		err = store.ReleaseKey(ctx, key)
	default:
		err = store.FailKey(ctx, key, status, contentType, rec.body.Bytes())
	}
	if err != nil {
		logger.Warn(ctx, "idempotency key not finalized", "key", key, "status", status, "error", err)
	}
}

// retryable reports whether the client may repeat the request with the same
// key and expect a different outcome.
func retryable(c *gin.Context, status int) bool {
	if status >= 500 || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	if len(c.Errors) == 0 {
		return false
	}
	err := c.Errors.Last().Err
	return apperror.HasCode(err, apperror.CodeTransactionAborted) ||
		apperror.HasCode(err, apperror.CodeConcurrentModification) ||
		apperror.HasCode(err, apperror.CodeConflict)
}
