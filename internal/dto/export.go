package dto

import (
	"time"

	"github.com/noah-isme/crime-report-api/internal/models"
)

// CreateExportRequest is the POST /exports payload.
type CreateExportRequest struct {
	Format   models.ExportFormat    `json:"format" validate:"required,oneof=csv pdf"`
	Status   *models.ReportStatus   `json:"status,omitempty" validate:"omitempty,oneof=NEW ASSIGNED INVESTIGATING RESOLVED CLOSED"`
	Priority *models.ReportPriority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// ExportJobResponse exposes job progress metadata.
type ExportJobResponse struct {
	ID         string              `json:"id"`
	Format     models.ExportFormat `json:"format"`
	Status     models.ExportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	RowCount   int                 `json:"row_count"`
	ResultURL  *string             `json:"result_url,omitempty"`
	Error      *string             `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// NewExportJobResponse projects job.
func NewExportJobResponse(job *models.ExportJob) ExportJobResponse {
	resp := ExportJobResponse{
		ID:         job.ID,
		Format:     job.Format,
		Status:     job.Status,
		Progress:   job.Progress,
		RowCount:   job.RowCount,
		ResultURL:  job.ResultURL,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}
