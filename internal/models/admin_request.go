package models

import "time"

// AdminRequestStatus is the state of an elevation request.
type AdminRequestStatus string

const (
	AdminRequestPending  AdminRequestStatus = "PENDING"
	AdminRequestApproved AdminRequestStatus = "APPROVED"
	AdminRequestRejected AdminRequestStatus = "REJECTED"
)

// Valid reports whether s is a known request status.
func (s AdminRequestStatus) Valid() bool {
	return s == AdminRequestPending || s == AdminRequestApproved || s == AdminRequestRejected
}

// AdminRequest is a user's request to become ADMIN.
type AdminRequest struct {
	ID         string             `db:"id" json:"id"`
	UserID     string             `db:"user_id" json:"user_id"`
	Reason     *string            `db:"reason" json:"reason,omitempty"`
	Status     AdminRequestStatus `db:"status" json:"status"`
	ApprovedBy *string            `db:"approved_by" json:"approved_by,omitempty"`
	AdminNotes *string            `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time         `db:"resolved_at" json:"resolved_at,omitempty"`
}

// AdminRequestFilter narrows request listings.
type AdminRequestFilter struct {
	Status *AdminRequestStatus
	Page   int
	Limit  int
}
