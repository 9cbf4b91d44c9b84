package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit action codes.
const (
	AuditUserRegistered        = "USER_REGISTERED"
	AuditUserLogin             = "USER_LOGIN"
	AuditUserLogout            = "USER_LOGOUT"
	AuditReportCreated         = "REPORT_CREATED"
	AuditReportStatusChanged   = "REPORT_STATUS_CHANGED"
	AuditReportPriorityChanged = "REPORT_PRIORITY_CHANGED"
	AuditReportNotesUpdated    = "REPORT_NOTES_UPDATED"
	AuditReportDeleted         = "REPORT_DELETED"
	AuditAdminRequested        = "ADMIN_REQUESTED"
	AuditAdminApproved         = "ADMIN_APPROVED"
	AuditAdminRejected         = "ADMIN_REJECTED"
	AuditAdminRevoked          = "ADMIN_REVOKED"
	AuditUserLocked            = "USER_LOCKED"
	AuditUserUnlocked          = "USER_UNLOCKED"
	AuditExportRequested       = "EXPORT_REQUESTED"
	AuditSuperAdminSeeded      = "SUPER_ADMIN_SEEDED"
)

// Audit resource types.
const (
	ResourceUser         = "USER"
	ResourceCrimeReport  = "CRIME_REPORT"
	ResourceAdminRequest = "ADMIN_REQUEST"
	ResourceExportJob    = "EXPORT_JOB"
)

// AuditLog represents an append-only audit trail record. ActorID is nil for system actions.
type AuditLog struct {
	ID           string         `db:"id" json:"id"`
	ActorID      *string        `db:"actor_id" json:"actor_id,omitempty"`
	Action       string         `db:"action" json:"action"`
	ResourceType *string        `db:"resource_type" json:"resource_type,omitempty"`
	ResourceID   *string        `db:"resource_id" json:"resource_id,omitempty"`
	Details      types.JSONText `db:"details" json:"details"`
	IPAddress    string         `db:"ip_address" json:"ip_address"`
	UserAgent    string         `db:"user_agent" json:"user_agent"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit listings. Empty fields are ignored.
type AuditFilter struct {
	Action       string
	ActorID      string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	Limit        int
}
