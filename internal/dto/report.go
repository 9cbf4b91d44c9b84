package dto

import (
	"time"

	"github.com/noah-isme/crime-report-api/internal/models"
)

// CreateReportRequest is the POST /reports payload. Priority defaults to MEDIUM.
type CreateReportRequest struct {
	Title        string                `json:"title" validate:"required,max=255"`
	Description  string                `json:"description" validate:"required"`
	Location     *string               `json:"location,omitempty" validate:"omitempty,max=500"`
	IncidentDate *time.Time            `json:"incident_date,omitempty"`
	Priority     models.ReportPriority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// UpdateStatusRequest is the PATCH /reports/:id/status payload.
type UpdateStatusRequest struct {
	Status models.ReportStatus `json:"status" validate:"required,oneof=NEW ASSIGNED INVESTIGATING RESOLVED CLOSED"`
	Notes  *string             `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdatePriorityRequest is the PATCH /reports/:id/priority payload.
type UpdatePriorityRequest struct {
	Priority models.ReportPriority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// UpdateNotesRequest is the PATCH /reports/:id/notes payload.
type UpdateNotesRequest struct {
	AdminNotes string `json:"admin_notes" validate:"max=5000"`
}

// ReportListQuery carries list filters for GET /reports and /reports/my-reports.
type ReportListQuery struct {
	Status   string `form:"status"`
	Priority string `form:"priority"`
	PageQuery
}

// ReportView is what a report owner sees. Admin notes are never present.
type ReportView struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Location     *string               `json:"location,omitempty"`
	IncidentDate *time.Time            `json:"incident_date,omitempty"`
	Status       models.ReportStatus   `json:"status"`
	Priority     models.ReportPriority `json:"priority"`
	Creator      *models.UserBrief     `json:"creator,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// AdminReportView adds admin notes and the creator's role.
type AdminReportView struct {
	ReportView
	AdminNotes *string `json:"admin_notes"`
}

// NewReportView projects r for its owner.
func NewReportView(r *models.CrimeReport, creator *models.User) ReportView {
	return ReportView{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Location:     r.Location,
		IncidentDate: r.IncidentDate,
		Status:       r.Status,
		Priority:     r.Priority,
		Creator:      creator.Brief(false),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// NewAdminReportView projects r for administrators.
func NewAdminReportView(r *models.CrimeReport, creator *models.User) AdminReportView {
	view := AdminReportView{ReportView: NewReportView(r, nil), AdminNotes: r.AdminNotes}
	view.Creator = creator.Brief(true)
	return view
}

// ReportSummary is the brief listing row visible to any authenticated user.
type ReportSummary struct {
	ID        string                `db:"id" json:"id"`
	Title     string                `db:"title" json:"title"`
	Status    models.ReportStatus   `db:"status" json:"status"`
	Priority  models.ReportPriority `db:"priority" json:"priority"`
	UserID    string                `db:"user_id" json:"user_id"`
	CreatedAt time.Time             `db:"created_at" json:"created_at"`
}

// HistoryEntry is one status history row with the changer resolved.
type HistoryEntry struct {
	ID        string               `json:"id"`
	OldStatus *models.ReportStatus `json:"old_status"`
	NewStatus models.ReportStatus  `json:"new_status"`
	Notes     *string              `json:"notes,omitempty"`
	ChangedBy *models.UserBrief    `json:"changed_by,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// DeleteReportResponse acknowledges a soft delete.
type DeleteReportResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}
