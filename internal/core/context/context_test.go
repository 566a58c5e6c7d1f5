package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRole(t *testing.T) {
	ctx := context.Background()
	assert.False(t, HasRole(ctx, RoleWorker))

	ctx = WithUser(ctx, &UserContext{UserID: "u1", Roles: []string{RoleWorker}})
	assert.True(t, HasRole(ctx, RoleWorker))
	assert.False(t, HasRole(ctx, RoleApprover))
	assert.True(t, HasAnyRole(ctx, RoleApprover, RoleWorker))
	assert.False(t, IsAdmin(ctx))
	assert.Equal(t, "u1", GetUserID(ctx))

	admin := WithUser(context.Background(), &UserContext{UserID: "root", IsAdmin: true})
	assert.True(t, HasRole(admin, RoleApprover))
	assert.True(t, IsAdmin(admin))
}

func TestNewTraceContext(t *testing.T) {
	tc := NewTraceContext("abc", "")
	assert.Equal(t, "abc", tc.TraceID)
	assert.NotEmpty(t, tc.RequestID)
	assert.Len(t, tc.SpanID, 16)

	ctx := WithTrace(context.Background(), tc)
	assert.Equal(t, "abc", GetTraceID(ctx))
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
	assert.Empty(t, GetTraceID(context.Background()))
}
