package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/middleware"
	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/pkg/response"
)

type elevationService interface {
	Request(ctx context.Context, principal *models.Principal, req dto.AdminElevationRequest, meta models.ClientMeta) (*dto.AdminRequestView, error)
	MyRequestStatus(ctx context.Context, principal *models.Principal) (*dto.AdminRequestStatusResponse, error)
}

// UserHandler serves the caller's own account endpoints.
type UserHandler struct {
	auth      authService
	elevation elevationService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(auth authService, elevation elevationService) *UserHandler {
	return &UserHandler{auth: auth, elevation: elevation}
}

// Profile godoc
// @Summary Current user profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	profile, err := h.auth.Me(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// RequestAdmin godoc
// @Summary Request the ADMIN role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AdminElevationRequest false "Reason"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/request-admin [post]
func (h *UserHandler) RequestAdmin(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.AdminElevationRequest
	if !bindJSON(c, &req, "invalid admin request payload", true) {
		return
	}
	view, err := h.elevation.Request(c.Request.Context(), principal, req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// AdminRequestStatus godoc
// @Summary Latest admin request of the caller
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/admin-request-status [get]
func (h *UserHandler) AdminRequestStatus(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	status, err := h.elevation.MyRequestStatus(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}
