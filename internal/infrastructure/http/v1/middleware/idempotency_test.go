package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/idempotency"
)

type recordingStore struct {
	acquired []string
	finished map[string]string
	replay   *idempotency.Replay
	bodies   map[string]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{finished: map[string]string{}, bodies: map[string]string{}}
}

func (s *recordingStore) AcquireKey(_ context.Context, key, _, operation, _ string) (*idempotency.Replay, error) {
	s.acquired = append(s.acquired, operation)
	return s.replay, nil
}

func (s *recordingStore) CompleteKey(_ context.Context, key string, _ int, _ string, body []byte) error {
	s.finished[key], s.bodies[key] = "complete", string(body)
	return nil
}

func (s *recordingStore) FailKey(_ context.Context, key string, _ int, _ string, body []byte) error {
	s.finished[key], s.bodies[key] = "fail", string(body)
	return nil
}

func (s *recordingStore) ReleaseKey(_ context.Context, key string) error {
	s.finished[key] = "release"
	return nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(store idempotency.Store, method string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(ErrorHandler(), Idempotency(store))
	r.Handle(method, "/things", handler)

	req := httptest.NewRequest(method, "/things", strings.NewReader(`{"a":1}`))
	req.Header.Set(HeaderIdempotencyKey, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_FinishesKeyByOutcome(t *testing.T) {
	tests := []struct {
		name    string
		handler gin.HandlerFunc
		status  int
		want    string
	}{
		{"success", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{"id": 1}) }, http.StatusCreated, "complete"},
		{"business rule", func(c *gin.Context) {
			_ = c.Error(apperror.NewBusinessRule(apperror.CodeStageArchived, "Stage is archived"))
		}, http.StatusUnprocessableEntity, "fail"},
		{"not found", func(c *gin.Context) { _ = c.Error(apperror.NewNotFound("stage", "x")) }, http.StatusNotFound, "fail"},
		{"aborted transaction", func(c *gin.Context) {
			_ = c.Error(apperror.NewTransactionAborted("approval", errors.New("deadlock")))
		}, http.StatusConflict, "release"},
		{"lock held", func(c *gin.Context) { _ = c.Error(apperror.NewConflict("busy")) }, http.StatusConflict, "release"},
		{"already decided", func(c *gin.Context) {
			_ = c.Error(apperror.NewReportNotPending("r1", "approved"))
		}, http.StatusConflict, "fail"},
		{"internal", func(c *gin.Context) { _ = c.Error(errors.New("disk full")) }, http.StatusInternalServerError, "release"},
		{"forbidden", func(c *gin.Context) { _ = c.Error(apperror.NewForbidden("no")) }, http.StatusForbidden, "release"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			w := serve(store, http.MethodPost, tt.handler)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.want, store.finished["k1"])
			if tt.want != "release" {
				assert.JSONEq(t, w.Body.String(), store.bodies["k1"], "stored body is what the client saw")
			}
		})
	}
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := newRecordingStore()
	store.replay = &idempotency.Replay{StatusCode: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"id":7}`)}

	called := false
	w := serve(store, http.MethodPost, func(c *gin.Context) { called = true })

	assert.False(t, called)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get(HeaderReplayed))
	assert.JSONEq(t, `{"id":7}`, w.Body.String())
	assert.Equal(t, []string{"POST /things"}, store.acquired)
}

func TestIdempotency_IgnoresSafeMethods(t *testing.T) {
	store := newRecordingStore()
	w := serve(store, http.MethodGet, func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.acquired)
	assert.Empty(t, store.finished)
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		c.Set("request_id", "req-1")
		_ = c.Error(errors.New("password=hunter2"))
	})
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("report", "abc"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")

	var body struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.Equal(t, "req-1", body.Details["request_id"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeNotFound, body.Code)
	assert.Equal(t, "report", body.Details["entity"])
}
