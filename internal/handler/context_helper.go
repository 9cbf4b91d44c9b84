package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crime-report-api/internal/middleware"
	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
	"github.com/noah-isme/crime-report-api/pkg/response"
)

// principalFromContext writes a 401 and returns nil when no session principal is attached.
func principalFromContext(c *gin.Context) *models.Principal {
	principal := middleware.CurrentPrincipal(c)
	if principal == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
	}
	return principal
}

// bindJSON decodes the request body into dest or writes a validation error.
// An empty body is accepted for payloads whose fields are all optional.
func bindJSON(c *gin.Context, dest interface{}, message string, allowEmpty bool) bool {
	if allowEmpty && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return false
	}
	return true
}
