package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

type auditStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

type userBatchLookup interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

type auditRecorder interface {
	Record(ctx context.Context, exec sqlx.ExtContext, entry AuditEntry) (*models.AuditLog, error)
}

// AuditEntry describes one state-changing action. A nil ActorID marks a system action.
type AuditEntry struct {
	ActorID      *string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	Meta         models.ClientMeta
}

// AuditService appends and queries the audit trail.
type AuditService struct {
	store   auditStore
	users   userBatchLookup
	metrics *MetricsService
	logger  *zap.Logger
	limits  PageLimits
}

// NewAuditService constructs the audit trail.
func NewAuditService(store auditStore, users userBatchLookup, metrics *MetricsService, logger *zap.Logger, limits PageLimits) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, users: users, metrics: metrics, logger: logger, limits: limits.withDefaults(AuditPageLimits)}
}

// Record writes entry through exec. Failures are returned so the caller's transaction rolls back.
func (s *AuditService) Record(ctx context.Context, exec sqlx.ExtContext, entry AuditEntry) (*models.AuditLog, error) {
	details := types.JSONText(`{}`)
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to encode audit details")
		}
		details = raw
	}
	log := &models.AuditLog{
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Details:   details,
		IPAddress: entry.Meta.IP,
		UserAgent: entry.Meta.UserAgent,
	}
	if entry.ResourceType != "" {
		log.ResourceType = strPtr(entry.ResourceType)
	}
	if entry.ResourceID != "" {
		log.ResourceID = strPtr(entry.ResourceID)
	}
	if err := s.store.Create(ctx, exec, log); err != nil {
		return nil, appErrors.Internal(err, "failed to record audit event")
	}
	action := entry.Action
	afterCommit(exec, func() { s.metrics.AuditRecorded(action) })
	return log, nil
}

// List returns audit rows matching query, newest first.
func (s *AuditService) List(ctx context.Context, query dto.AuditLogQuery) (*dto.PageResult[dto.AuditLogView], error) {
	if query.ActorID != "" && !validID(query.ActorID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor_id must be a UUID")
	}
	if query.StartDate != nil && query.EndDate != nil && query.StartDate.After(*query.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must not be after end_date")
	}
	page, limit, err := normalizePage(query.Page, query.Limit, s.limits)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, models.AuditFilter{
		Action:       query.Action,
		ActorID:      query.ActorID,
		ResourceType: query.ResourceType,
		ResourceID:   query.ResourceID,
		StartDate:    utcPtr(query.StartDate),
		EndDate:      utcPtr(query.EndDate),
		Page:         page,
		Limit:        limit,
	})
}

// ListForUser returns the actions performed by userID.
func (s *AuditService) ListForUser(ctx context.Context, userID string, query dto.UserAuditQuery) (*dto.PageResult[dto.AuditLogView], error) {
	if !validID(userID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	page, limit, err := normalizePage(query.Page, query.Limit, s.limits)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, nil, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return s.list(ctx, models.AuditFilter{ActorID: userID, Action: query.Action, Page: page, Limit: limit})
}

func (s *AuditService) list(ctx context.Context, filter models.AuditFilter) (*dto.PageResult[dto.AuditLogView], error) {
	logs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list audit logs")
	}

	ids := make([]string, 0, len(logs))
	for _, log := range logs {
		if log.ActorID != nil {
			ids = append(ids, *log.ActorID)
		}
	}
	actors, err := s.users.FindByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load audit actors")
	}

	views := make([]dto.AuditLogView, 0, len(logs))
	for i := range logs {
		var actor *models.User
		if logs[i].ActorID != nil {
			actor = actors[*logs[i].ActorID]
		}
		views = append(views, dto.NewAuditLogView(&logs[i], actor))
	}
	result := dto.NewPage(views, total, filter.Page, filter.Limit)
	return &result, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
