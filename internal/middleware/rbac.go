package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/internal/service"
	"github.com/noah-isme/crime-report-api/pkg/response"
)

// RequireRoles aborts unless the session principal holds one of roles. Must run after Session.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := service.Authorize(CurrentPrincipal(c), roles...); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
