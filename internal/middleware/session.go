package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/internal/service"
	"github.com/noah-isme/crime-report-api/pkg/logger"
	"github.com/noah-isme/crime-report-api/pkg/response"
)

const (
	// ContextPrincipalKey is the gin context key storing the resolved *models.Principal.
	ContextPrincipalKey = "principal"
	contextTokenKey     = "session_token"
)

// SessionResolver maps a bearer token to its principal.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Principal, error)
}

// Session requires a valid `Authorization: Bearer <token>` header.
func Session(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := service.ParseBearer(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Set(contextTokenKey, token)
		c.Set(logger.PrincipalKey, principal.UserID)
		c.Next()
	}
}

// CurrentPrincipal returns the principal set by Session, or nil.
func CurrentPrincipal(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*models.Principal)
	return principal
}

// SessionToken returns the raw bearer token of the current request.
func SessionToken(c *gin.Context) string {
	return c.GetString(contextTokenKey)
}

// ClientMeta collects the request attributes attached to audit rows.
func ClientMeta(c *gin.Context) models.ClientMeta {
	return models.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
