package models

import "time"

// ReportStatus is the lifecycle state of a crime report.
type ReportStatus string

const (
	ReportStatusNew           ReportStatus = "NEW"
	ReportStatusAssigned      ReportStatus = "ASSIGNED"
	ReportStatusInvestigating ReportStatus = "INVESTIGATING"
	ReportStatusResolved      ReportStatus = "RESOLVED"
	ReportStatusClosed        ReportStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusNew, ReportStatusAssigned, ReportStatusInvestigating, ReportStatusResolved, ReportStatusClosed:
		return true
	default:
		return false
	}
}

// ReportPriority ranks triage urgency.
type ReportPriority string

const (
	PriorityLow      ReportPriority = "LOW"
	PriorityMedium   ReportPriority = "MEDIUM"
	PriorityHigh     ReportPriority = "HIGH"
	PriorityCritical ReportPriority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p ReportPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// CrimeReport is a citizen-filed report. Rows are soft deleted only.
type CrimeReport struct {
	ID           string         `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	Location     *string        `db:"location" json:"location,omitempty"`
	IncidentDate *time.Time     `db:"incident_date" json:"incident_date,omitempty"`
	Status       ReportStatus   `db:"status" json:"status"`
	Priority     ReportPriority `db:"priority" json:"priority"`
	AdminNotes   *string        `db:"admin_notes" json:"admin_notes,omitempty"`
	IsDeleted    bool           `db:"is_deleted" json:"is_deleted"`
	DeletedAt    *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ReportStatusHistory is one append-only ledger entry. OldStatus is nil only for creation.
type ReportStatusHistory struct {
	ID        string        `db:"id" json:"id"`
	ReportID  string        `db:"report_id" json:"report_id"`
	OldStatus *ReportStatus `db:"old_status" json:"old_status"`
	NewStatus ReportStatus  `db:"new_status" json:"new_status"`
	ChangedBy string        `db:"changed_by" json:"changed_by"`
	Notes     *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// ReportFilter narrows report listings. Deleted rows are always excluded.
type ReportFilter struct {
	UserID   *string
	Status   *ReportStatus
	Priority *ReportPriority
	Page     int
	Limit    int
}
