package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, query dto.AuditLogQuery) (*dto.PageResult[dto.AuditLogView], error)
	ListForUser(ctx context.Context, userID string, query dto.UserAuditQuery) (*dto.PageResult[dto.AuditLogView], error)
}

// AuditHandler exposes the audit trail to SUPER_ADMIN callers.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary Search audit logs
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param action query string false "Action"
// @Param actor_id query string false "Actor ID"
// @Param resource_type query string false "Resource type"
// @Param resource_id query string false "Resource ID"
// @Param start_date query string false "RFC 3339 lower bound"
// @Param end_date query string false "RFC 3339 upper bound"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit/logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var query dto.AuditLogQuery
	if !bindQuery(c, &query) {
		return
	}
	page, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page)
}

// ListForUser godoc
// @Summary Actions performed by one user
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param action query string false "Action"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /audit/users/{id} [get]
func (h *AuditHandler) ListForUser(c *gin.Context) {
	var query dto.UserAuditQuery
	if !bindQuery(c, &query) {
		return
	}
	page, err := h.service.ListForUser(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page)
}
