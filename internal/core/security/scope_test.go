package security

import (
	"context"
	"testing"

	"grnflow/internal/core/appcontext"
	"grnflow/internal/core/apperror"
)

func ctxWithUser(role, userID string, perms ...string) context.Context {
	return appcontext.WithUser(context.Background(), &appcontext.UserContext{
		UserID:      userID,
		Username:    userID,
		Role:        role,
		Permissions: perms,
	})
}

func TestBatchPolicy_Owner(t *testing.T) {
	p := DefaultBatchPolicy()
	ctx := ctxWithUser(appcontext.RoleUser, "u-100")

	ok, err := p.CanAccess(ctx, "u-100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("owner must have access to own batch")
	}

	ok, err = p.CanAccess(ctx, "u-200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("plain user must not access another user's batch")
	}
}

func TestBatchPolicy_ElevatedRoles(t *testing.T) {
	p := DefaultBatchPolicy()

	for _, role := range []string{appcontext.RoleAdmin, appcontext.RoleManager, appcontext.RoleQC} {
		ctx := ctxWithUser(role, "u-300")
		ok, err := p.CanAccess(ctx, "someone-else")
		if err != nil {
			t.Fatalf("role %s: unexpected error: %v", role, err)
		}
		if !ok {
			t.Errorf("role %s must access any batch", role)
		}
	}
}

func TestBatchPolicy_RequireAccess(t *testing.T) {
	p := DefaultBatchPolicy()
	ctx := ctxWithUser(appcontext.RoleUser, "u-100")

	if err := p.RequireAccess(ctx, "u-100"); err != nil {
		t.Fatalf("owner access: %v", err)
	}

	err := p.RequireAccess(ctx, "u-999")
	if err == nil {
		t.Fatal("expected access denied")
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeAccessDenied {
		t.Errorf("expected %s, got %v", apperror.CodeAccessDenied, err)
	}
}

func TestBatchPolicy_CustomExpression(t *testing.T) {
	p, err := NewBatchPolicy(`"qc_dashboard" in permissions`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ctx := ctxWithUser(appcontext.RoleUser, "u-1", appcontext.PermQCDashboard)
	ok, err := p.CanAccess(ctx, "other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("permission holder must pass custom policy")
	}
}

func TestNewBatchPolicy_InvalidExpression(t *testing.T) {
	if _, err := NewBatchPolicy(`user_id +`); err == nil {
		t.Error("expected compile error")
	}
	if _, err := NewBatchPolicy(`user_id`); err == nil {
		t.Error("expected non-bool output error")
	}
}
