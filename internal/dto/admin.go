package dto

import (
	"time"

	"github.com/noah-isme/crime-report-api/internal/models"
)

// AdminElevationRequest is the POST /users/request-admin payload.
type AdminElevationRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// ResolveAdminRequest carries optional notes for approve and reject.
type ResolveAdminRequest struct {
	AdminNotes *string `json:"admin_notes,omitempty" validate:"omitempty,max=1000"`
}

// ReasonRequest carries the optional reason for revoke and lock.
type ReasonRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// AdminRequestListQuery carries GET /admin/requests filters.
type AdminRequestListQuery struct {
	Status string `form:"status"`
	PageQuery
}

// AdminRequestView is an admin request with requester and approver resolved.
type AdminRequestView struct {
	ID         string                    `json:"id"`
	Reason     *string                   `json:"reason,omitempty"`
	Status     models.AdminRequestStatus `json:"status"`
	AdminNotes *string                   `json:"admin_notes,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	ResolvedAt *time.Time                `json:"resolved_at,omitempty"`
	Requester  *models.UserBrief         `json:"requester,omitempty"`
	Approver   *models.UserBrief         `json:"approver,omitempty"`
}

// NewAdminRequestView projects req with optional requester and approver rows.
func NewAdminRequestView(req *models.AdminRequest, requester, approver *models.User) AdminRequestView {
	view := AdminRequestView{
		ID:         req.ID,
		Reason:     req.Reason,
		Status:     req.Status,
		AdminNotes: req.AdminNotes,
		CreatedAt:  req.CreatedAt,
		ResolvedAt: req.ResolvedAt,
		Requester:  requester.Brief(true),
		Approver:   approver.Brief(false),
	}
	if view.Requester != nil {
		created := requester.CreatedAt
		view.Requester.CreatedAt = &created
	}
	return view
}

// AdminRequestStatusResponse answers GET /users/admin-request-status.
type AdminRequestStatusResponse struct {
	HasRequest bool              `json:"has_request"`
	Request    *AdminRequestView `json:"request,omitempty"`
}

// RoleChangeResponse is returned by revoke-admin.
type RoleChangeResponse struct {
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
	OldRole   models.UserRole `json:"old_role"`
	NewRole   models.UserRole `json:"new_role"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LockStatusResponse is returned by lock and unlock.
type LockStatusResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IsLocked  bool      `json:"is_locked"`
	UpdatedAt time.Time `json:"updated_at"`
}
