package service

import (
	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

// Role sets used by route guards.
var (
	AnyAuthenticated = []models.UserRole{models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin}
	AdminRoles       = []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}
	SuperAdminOnly   = []models.UserRole{models.RoleSuperAdmin}
)

// Authorize returns the principal unchanged when its role is one of roles.
func Authorize(principal *models.Principal, roles ...models.UserRole) (*models.Principal, error) {
	if principal == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	for _, role := range roles {
		if principal.Role == role {
			return principal, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
}
