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

type adminService interface {
	ListRequests(ctx context.Context, query dto.AdminRequestListQuery) (*dto.PageResult[dto.AdminRequestView], error)
	Approve(ctx context.Context, principal *models.Principal, id string, req dto.ResolveAdminRequest, meta models.ClientMeta) (*dto.AdminRequestView, error)
	Reject(ctx context.Context, principal *models.Principal, id string, req dto.ResolveAdminRequest, meta models.ClientMeta) (*dto.AdminRequestView, error)
	Revoke(ctx context.Context, principal *models.Principal, userID string, req dto.ReasonRequest, meta models.ClientMeta) (*dto.RoleChangeResponse, error)
	Lock(ctx context.Context, principal *models.Principal, userID string, req dto.ReasonRequest, meta models.ClientMeta) (*dto.LockStatusResponse, error)
	Unlock(ctx context.Context, principal *models.Principal, userID string, meta models.ClientMeta) (*dto.LockStatusResponse, error)
}

// AdminHandler serves SUPER_ADMIN moderation endpoints.
type AdminHandler struct {
	service adminService
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc adminService) *AdminHandler {
	return &AdminHandler{service: svc}
}

// ListRequests godoc
// @Summary List admin role requests
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/requests [get]
func (h *AdminHandler) ListRequests(c *gin.Context) {
	var query dto.AdminRequestListQuery
	if !bindQuery(c, &query) {
		return
	}
	page, err := h.service.ListRequests(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page)
}

// Approve godoc
// @Summary Approve an admin request
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.ResolveAdminRequest false "Notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	h.resolve(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject an admin request
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.ResolveAdminRequest false "Notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/requests/{id}/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	h.resolve(c, h.service.Reject)
}

type resolveFunc func(ctx context.Context, principal *models.Principal, id string, req dto.ResolveAdminRequest, meta models.ClientMeta) (*dto.AdminRequestView, error)

func (h *AdminHandler) resolve(c *gin.Context, fn resolveFunc) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.ResolveAdminRequest
	if !bindJSON(c, &req, "invalid resolution payload", true) {
		return
	}
	view, err := fn(c.Request.Context(), principal, c.Param("id"), req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// RevokeAdmin godoc
// @Summary Demote an ADMIN to USER
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body dto.ReasonRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users/{id}/revoke-admin [post]
func (h *AdminHandler) RevokeAdmin(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.ReasonRequest
	if !bindJSON(c, &req, "invalid revoke payload", true) {
		return
	}
	res, err := h.service.Revoke(c.Request.Context(), principal, c.Param("id"), req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Lock godoc
// @Summary Lock a user account
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body dto.ReasonRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users/{id}/lock [post]
func (h *AdminHandler) Lock(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.ReasonRequest
	if !bindJSON(c, &req, "invalid lock payload", true) {
		return
	}
	res, err := h.service.Lock(c.Request.Context(), principal, c.Param("id"), req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Unlock godoc
// @Summary Unlock a user account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users/{id}/unlock [post]
func (h *AdminHandler) Unlock(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	res, err := h.service.Unlock(c.Request.Context(), principal, c.Param("id"), middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
