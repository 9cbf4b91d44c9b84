package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/crime-report-api/internal/models"
)

// AuditLogQuery carries GET /audit/logs filters. Dates use RFC 3339.
type AuditLogQuery struct {
	Action       string     `form:"action"`
	ActorID      string     `form:"actor_id"`
	ResourceType string     `form:"resource_type"`
	ResourceID   string     `form:"resource_id"`
	StartDate    *time.Time `form:"start_date"`
	EndDate      *time.Time `form:"end_date"`
	PageQuery
}

// UserAuditQuery carries GET /audit/users/:id filters.
type UserAuditQuery struct {
	Action string `form:"action"`
	PageQuery
}

// AuditLogView is an audit row with the actor resolved when known.
type AuditLogView struct {
	ID           string            `json:"id"`
	Action       string            `json:"action"`
	ResourceType *string           `json:"resource_type,omitempty"`
	ResourceID   *string           `json:"resource_id,omitempty"`
	Details      json.RawMessage   `json:"details"`
	IPAddress    string            `json:"ip_address"`
	UserAgent    string            `json:"user_agent"`
	CreatedAt    time.Time         `json:"created_at"`
	Actor        *models.UserBrief `json:"actor"`
}

// NewAuditLogView projects log with an optional actor.
func NewAuditLogView(log *models.AuditLog, actor *models.User) AuditLogView {
	details := json.RawMessage(log.Details)
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return AuditLogView{
		ID:           log.ID,
		Action:       log.Action,
		ResourceType: log.ResourceType,
		ResourceID:   log.ResourceID,
		Details:      details,
		IPAddress:    log.IPAddress,
		UserAgent:    log.UserAgent,
		CreatedAt:    log.CreatedAt,
		Actor:        actor.Brief(true),
	}
}
