package middleware

import (
	"github.com/gin-gonic/gin"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/appcontext"
)

// RequirePermission middleware checks if user has required permission.
// Admins automatically have all permissions.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appcontext.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		if !user.HasPermission(permission) {
			_ = c.Error(
				apperror.NewAccessDenied("insufficient permissions").
					WithDetail("required_permission", permission),
			)
			c.Abort()
			return
		}

		c.Next()
	}
}
