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

type reportService interface {
	Create(ctx context.Context, principal *models.Principal, req dto.CreateReportRequest, meta models.ClientMeta) (*dto.ReportView, error)
	Get(ctx context.Context, principal *models.Principal, id string) (interface{}, error)
	History(ctx context.Context, principal *models.Principal, id string) ([]dto.HistoryEntry, error)
	ListMine(ctx context.Context, principal *models.Principal, query dto.ReportListQuery) (*dto.PageResult[dto.ReportView], error)
	ListAll(ctx context.Context, query dto.ReportListQuery) (*dto.PageResult[dto.ReportSummary], bool, error)
	SetStatus(ctx context.Context, principal *models.Principal, id string, req dto.UpdateStatusRequest, meta models.ClientMeta) (*dto.AdminReportView, error)
	SetPriority(ctx context.Context, principal *models.Principal, id string, req dto.UpdatePriorityRequest, meta models.ClientMeta) (*dto.AdminReportView, error)
	SetNotes(ctx context.Context, principal *models.Principal, id string, req dto.UpdateNotesRequest, meta models.ClientMeta) (*dto.AdminReportView, error)
	SoftDelete(ctx context.Context, principal *models.Principal, id string, meta models.ClientMeta) (*dto.DeleteReportResponse, error)
}

// ReportHandler exposes the crime report lifecycle.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Create godoc
// @Summary File a crime report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateReportRequest true "Report"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.CreateReportRequest
	if !bindJSON(c, &req, "invalid report payload", false) {
		return
	}
	view, err := h.service.Create(c.Request.Context(), principal, req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// List godoc
// @Summary List all reports (brief)
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param priority query string false "Priority filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	var query dto.ReportListQuery
	if !bindQuery(c, &query) {
		return
	}
	page, cached, err := h.service.ListAll(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, page, middleware.ExtractMeta(c))
}

// ListMine godoc
// @Summary List the caller's reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param priority query string false "Priority filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports/my-reports [get]
func (h *ReportHandler) ListMine(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var query dto.ReportListQuery
	if !bindQuery(c, &query) {
		return
	}
	page, err := h.service.ListMine(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page)
}

// Get godoc
// @Summary Get a report
// @Description Owners see the citizen view; admins see notes and the reporter role
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	view, err := h.service.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// History godoc
// @Summary Status history of a report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/history [get]
func (h *ReportHandler) History(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	entries, err := h.service.History(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// UpdateStatus godoc
// @Summary Change report status
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.UpdateStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/status [patch]
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req, "invalid status payload", false) {
		return
	}
	view, err := h.service.SetStatus(c.Request.Context(), principal, c.Param("id"), req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// UpdatePriority godoc
// @Summary Change report priority
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.UpdatePriorityRequest true "Priority"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/priority [patch]
func (h *ReportHandler) UpdatePriority(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.UpdatePriorityRequest
	if !bindJSON(c, &req, "invalid priority payload", false) {
		return
	}
	view, err := h.service.SetPriority(c.Request.Context(), principal, c.Param("id"), req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// UpdateNotes godoc
// @Summary Replace admin notes
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.UpdateNotesRequest true "Notes"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/notes [patch]
func (h *ReportHandler) UpdateNotes(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.UpdateNotesRequest
	if !bindJSON(c, &req, "invalid notes payload", false) {
		return
	}
	view, err := h.service.SetNotes(c.Request.Context(), principal, c.Param("id"), req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Delete godoc
// @Summary Soft delete a report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	res, err := h.service.SoftDelete(c.Request.Context(), principal, c.Param("id"), middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
