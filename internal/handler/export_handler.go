package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/middleware"
	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/internal/service"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
	"github.com/noah-isme/crime-report-api/pkg/response"
)

type exportService interface {
	CreateJob(ctx context.Context, principal *models.Principal, req dto.CreateExportRequest, meta models.ClientMeta) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, principal *models.Principal, id string) (*dto.ExportJobResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler manages report export jobs.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs an ExportHandler. A nil service disables every route.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

func (h *ExportHandler) enabled(c *gin.Context) bool {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return false
	}
	return true
}

// Create godoc
// @Summary Queue a report export
// @Tags Exports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateExportRequest true "Export"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.CreateExportRequest
	if !bindJSON(c, &req, "invalid export payload", false) {
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), principal, req, middleware.ClientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	job, err := h.service.GetStatus(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// Download godoc
// @Summary Download an export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, err := download.File.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, download.ContentType, download.File, nil)
}
