// Package appcontext provides request-scoped values extraction.
package appcontext

import (
	"context"
)

// Roles known to the workflow. QC and managers may approve/reject and retry
// posting; admins implicitly hold every permission.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleQC      = "qc"
	RoleUser    = "user"
)

// Permission names gating workflow entry points.
const (
	PermMultipleGRN = "multiple_grn"
	PermQCDashboard = "qc_dashboard"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID      string
	Username    string
	Role        string
	Permissions []string
	SessionID   string
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

// IsAdmin reports whether the context user holds the admin role.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasRole checks if user has one of the given roles.
func (u *UserContext) HasRole(roles ...string) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// HasPermission checks if user has a named permission.
// Admins automatically have all permissions.
func (u *UserContext) HasPermission(name string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	for _, p := range u.Permissions {
		if p == name {
			return true
		}
	}
	return false
}
