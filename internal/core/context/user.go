// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// Roles recognised by the ledger.
const (
	RoleWorker   = "worker"
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// UserContext contains the authenticated caller.
type UserContext struct {
	UserID    string
	Name      string
	Roles     []string
	IsAdmin   bool
	SessionID string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role. Admins have every role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return u.IsAdmin || slices.Contains(u.Roles, role)
}

// HasAnyRole checks if user has at least one of roles.
func HasAnyRole(ctx context.Context, roles ...string) bool {
	for _, r := range roles {
		if HasRole(ctx, r) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller is an administrator.
func IsAdmin(ctx context.Context) bool {
	u := GetUser(ctx)
	return u != nil && (u.IsAdmin || slices.Contains(u.Roles, RoleAdmin))
}
