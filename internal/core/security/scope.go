// Package security provides authorization and access control.
package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"grnflow/internal/core/appcontext"
	"grnflow/internal/core/apperror"
)

// AccessScope defines the boundaries of data visibility for current request.
// Used for authorization decisions on batches and for consistent audit context.
type AccessScope struct {
	// UserID is the authenticated user
	UserID string

	// Username for audit entries
	Username string

	// Role of the user
	Role string

	// IsAdmin bypasses ownership filtering
	IsAdmin bool

	// Permissions available to user
	Permissions []string
}

// NewAccessScope creates AccessScope from context.
func NewAccessScope(ctx context.Context) *AccessScope {
	user := appcontext.GetUser(ctx)
	if user == nil {
		return &AccessScope{}
	}

	return &AccessScope{
		UserID:      user.UserID,
		Username:    user.Username,
		Role:        user.Role,
		IsAdmin:     user.IsAdmin(),
		Permissions: user.Permissions,
	}
}

// HasPermission checks if user has named permission.
func (s *AccessScope) HasPermission(name string) bool {
	if s.IsAdmin {
		return true
	}
	for _, p := range s.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// RequirePermission returns error if permission is missing.
func (s *AccessScope) RequirePermission(name string) error {
	if !s.HasPermission(name) {
		return apperror.NewAccessDenied(
			fmt.Sprintf("permission %s required", name),
		).WithDetail("permission", name)
	}
	return nil
}

// --- Context-based scope access ---

type scopeKey struct{}

// WithScope adds AccessScope to context.
func WithScope(ctx context.Context, scope *AccessScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// GetScope returns AccessScope from context.
func GetScope(ctx context.Context) *AccessScope {
	if v, ok := ctx.Value(scopeKey{}).(*AccessScope); ok {
		return v
	}
	return NewAccessScope(ctx)
}

// --- Batch access policy ---

// DefaultBatchPolicyExpr grants access to the batch owner and to elevated roles.
// The expression is evaluated against the current user and the batch owner.
const DefaultBatchPolicyExpr = `user_id == owner_id || role in ["admin", "manager", "qc"]`

// BatchPolicy decides whether a user may act on a given batch.
// The rule is a CEL expression compiled once at construction, so deployments
// can tighten or relax batch visibility without code changes.
type BatchPolicy struct {
	program cel.Program
}

// NewBatchPolicy compiles expr into a batch access policy.
// The expression has access to user_id, role, permissions and owner_id
// and must evaluate to bool.
func NewBatchPolicy(expr string) (*BatchPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.StringType),
		cel.Variable("role", cel.StringType),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
		cel.Variable("owner_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile batch policy: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("batch policy must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build batch policy program: %w", err)
	}

	return &BatchPolicy{program: prg}, nil
}

// DefaultBatchPolicy returns the owner-or-elevated-role policy.
func DefaultBatchPolicy() *BatchPolicy {
	p, err := NewBatchPolicy(DefaultBatchPolicyExpr)
	if err != nil {
		// The default expression is a compile-time constant.
		panic(fmt.Sprintf("default batch policy: %v", err))
	}
	return p
}

// CanAccess reports whether the current user may act on a batch owned by ownerID.
func (p *BatchPolicy) CanAccess(ctx context.Context, ownerID string) (bool, error) {
	scope := GetScope(ctx)
	if scope.IsAdmin {
		return true, nil
	}

	perms := scope.Permissions
	if perms == nil {
		perms = []string{}
	}

	out, _, err := p.program.Eval(map[string]any{
		"user_id":     scope.UserID,
		"role":        scope.Role,
		"permissions": perms,
		"owner_id":    ownerID,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate batch policy: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("batch policy returned %T, want bool", out.Value())
	}
	return allowed, nil
}

// RequireAccess returns an access denied error when the policy rejects the user.
func (p *BatchPolicy) RequireAccess(ctx context.Context, ownerID string) error {
	allowed, err := p.CanAccess(ctx, ownerID)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if !allowed {
		return apperror.NewAccessDenied("no access to this batch").
			WithDetail("owner_id", ownerID)
	}
	return nil
}
