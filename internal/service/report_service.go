package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

const reportListCacheNamespace = "reports:list"

type reportStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, report *models.CrimeReport) error
	GetByID(ctx context.Context, id string) (*models.CrimeReport, error)
	GetByIDIncludingDeleted(ctx context.Context, id string) (*models.CrimeReport, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CrimeReport, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ReportStatus, updatedAt time.Time) error
	UpdatePriority(ctx context.Context, exec sqlx.ExtContext, id string, priority models.ReportPriority, updatedAt time.Time) error
	UpdateNotes(ctx context.Context, exec sqlx.ExtContext, id string, notes *string, updatedAt time.Time) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error
	List(ctx context.Context, filter models.ReportFilter) ([]models.CrimeReport, int, error)
	ListSummaries(ctx context.Context, filter models.ReportFilter) ([]dto.ReportSummary, int, error)
}

type statusHistoryStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ReportStatusHistory) error
	ListByReport(ctx context.Context, reportID string) ([]models.ReportStatusHistory, error)
}

// ReportServiceConfig tunes listing bounds and caching.
type ReportServiceConfig struct {
	Limits   PageLimits
	CacheTTL time.Duration
}

// ReportService owns the crime report lifecycle: creation, triage, soft deletion and status history.
type ReportService struct {
	tx        txProvider
	reports   reportStore
	history   statusHistoryStore
	users     userBatchLookup
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
	now       func() time.Time
}

// NewReportService constructs the report service. cache may be nil.
func NewReportService(tx txProvider, reports reportStore, history statusHistoryStore, users userBatchLookup, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	cfg.Limits = cfg.Limits.withDefaults(DefaultPageLimits)
	return &ReportService{
		tx:        tx,
		reports:   reports,
		history:   history,
		users:     users,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create files a new report in status NEW together with its first history row.
func (s *ReportService) Create(ctx context.Context, principal *models.Principal, req dto.CreateReportRequest, meta models.ClientMeta) (*dto.ReportView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	report := &models.CrimeReport{
		UserID:       principal.UserID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		IncidentDate: utcPtr(req.IncidentDate),
		Status:       models.ReportStatusNew,
		Priority:     req.Priority,
		CreatedAt:    s.now(),
	}

	err := withTx(ctx, s.tx, func(tx *txScope) error {
		if err := s.reports.Create(ctx, tx, report); err != nil {
			return appErrors.Internal(err, "failed to create report")
		}
		if err := s.history.Create(ctx, tx, &models.ReportStatusHistory{
			ReportID:  report.ID,
			NewStatus: models.ReportStatusNew,
			ChangedBy: principal.UserID,
			CreatedAt: report.CreatedAt,
		}); err != nil {
			return appErrors.Internal(err, "failed to record status history")
		}
		if _, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditReportCreated,
			ResourceType: models.ResourceCrimeReport,
			ResourceID:   report.ID,
			Details:      map[string]interface{}{"title": report.Title, "priority": report.Priority},
			Meta:         meta,
		}); err != nil {
			return err
		}
		tx.OnCommit(s.invalidateListCache)
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := dto.NewReportView(report, &models.User{ID: principal.UserID, Email: principal.Email})
	return &view, nil
}

// Get returns a dto.AdminReportView for administrators and a dto.ReportView for the owner.
func (s *ReportService) Get(ctx context.Context, principal *models.Principal, id string) (interface{}, error) {
	report, err := s.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.Role.IsAdmin() && report.UserID != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this report")
	}
	creator, err := s.creator(ctx, report.UserID)
	if err != nil {
		return nil, err
	}
	if principal.Role.IsAdmin() {
		return dto.NewAdminReportView(report, creator), nil
	}
	return dto.NewReportView(report, creator), nil
}

// History returns status history oldest first. It stays readable after the report is soft deleted.
func (s *ReportService) History(ctx context.Context, principal *models.Principal, id string) ([]dto.HistoryEntry, error) {
	if !validID(id) {
		return nil, reportNotFound()
	}
	report, err := s.reports.GetByIDIncludingDeleted(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reportNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load report")
	}
	if !principal.Role.IsAdmin() && report.UserID != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this report")
	}

	entries, err := s.history.ListByReport(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load status history")
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ChangedBy)
	}
	changers, err := s.users.FindByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load history actors")
	}

	result := make([]dto.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, dto.HistoryEntry{
			ID:        entry.ID,
			OldStatus: entry.OldStatus,
			NewStatus: entry.NewStatus,
			Notes:     entry.Notes,
			ChangedBy: changers[entry.ChangedBy].Brief(true),
			CreatedAt: entry.CreatedAt,
		})
	}
	return result, nil
}

// SetStatus moves a report to status and appends the matching history row. Any target status is allowed, including the current one.
func (s *ReportService) SetStatus(ctx context.Context, principal *models.Principal, id string, req dto.UpdateStatusRequest, meta models.ClientMeta) (*dto.AdminReportView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	return s.mutate(ctx, id, func(tx *txScope, report *models.CrimeReport, now time.Time) error {
		old := report.Status
		if err := s.reports.UpdateStatus(ctx, tx, report.ID, req.Status, now); err != nil {
			return appErrors.Internal(err, "failed to update report status")
		}
		if err := s.history.Create(ctx, tx, &models.ReportStatusHistory{
			ReportID:  report.ID,
			OldStatus: &old,
			NewStatus: req.Status,
			ChangedBy: principal.UserID,
			Notes:     req.Notes,
			CreatedAt: now,
		}); err != nil {
			return appErrors.Internal(err, "failed to record status history")
		}
		report.Status = req.Status
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditReportStatusChanged,
			ResourceType: models.ResourceCrimeReport,
			ResourceID:   report.ID,
			Details:      map[string]interface{}{"old": old, "new": req.Status, "notes": req.Notes},
			Meta:         meta,
		})
		return err
	})
}

// SetPriority changes a report's priority. No history row is written.
func (s *ReportService) SetPriority(ctx context.Context, principal *models.Principal, id string, req dto.UpdatePriorityRequest, meta models.ClientMeta) (*dto.AdminReportView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid priority payload")
	}
	return s.mutate(ctx, id, func(tx *txScope, report *models.CrimeReport, now time.Time) error {
		old := report.Priority
		if err := s.reports.UpdatePriority(ctx, tx, report.ID, req.Priority, now); err != nil {
			return appErrors.Internal(err, "failed to update report priority")
		}
		report.Priority = req.Priority
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditReportPriorityChanged,
			ResourceType: models.ResourceCrimeReport,
			ResourceID:   report.ID,
			Details:      map[string]interface{}{"old": old, "new": req.Priority},
			Meta:         meta,
		})
		return err
	})
}

// SetNotes replaces the admin-only notes. An empty value clears them.
func (s *ReportService) SetNotes(ctx context.Context, principal *models.Principal, id string, req dto.UpdateNotesRequest, meta models.ClientMeta) (*dto.AdminReportView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notes payload")
	}
	var notes *string
	if req.AdminNotes != "" {
		notes = strPtr(req.AdminNotes)
	}
	return s.mutate(ctx, id, func(tx *txScope, report *models.CrimeReport, now time.Time) error {
		hadPrevious := report.AdminNotes != nil && *report.AdminNotes != ""
		if err := s.reports.UpdateNotes(ctx, tx, report.ID, notes, now); err != nil {
			return appErrors.Internal(err, "failed to update report notes")
		}
		report.AdminNotes = notes
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditReportNotesUpdated,
			ResourceType: models.ResourceCrimeReport,
			ResourceID:   report.ID,
			Details:      map[string]interface{}{"had_previous_notes": hadPrevious},
			Meta:         meta,
		})
		return err
	})
}

// SoftDelete hides a report. Deleting an already deleted report is NotFound.
func (s *ReportService) SoftDelete(ctx context.Context, principal *models.Principal, id string, meta models.ClientMeta) (*dto.DeleteReportResponse, error) {
	_, err := s.mutate(ctx, id, func(tx *txScope, report *models.CrimeReport, now time.Time) error {
		if err := s.reports.SoftDelete(ctx, tx, report.ID, now); err != nil {
			return appErrors.Internal(err, "failed to delete report")
		}
		report.IsDeleted = true
		report.DeletedAt = &now
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditReportDeleted,
			ResourceType: models.ResourceCrimeReport,
			ResourceID:   report.ID,
			Meta:         meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dto.DeleteReportResponse{Message: "report deleted", ID: id}, nil
}

// mutate locks a live report, applies fn in one transaction and returns the admin view.
func (s *ReportService) mutate(ctx context.Context, id string, fn func(tx *txScope, report *models.CrimeReport, now time.Time) error) (*dto.AdminReportView, error) {
	if !validID(id) {
		return nil, reportNotFound()
	}
	var report *models.CrimeReport
	err := withTx(ctx, s.tx, func(tx *txScope) error {
		var err error
		report, err = s.reports.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return reportNotFound()
			}
			return appErrors.Internal(err, "failed to load report")
		}
		now := s.now()
		if err := fn(tx, report, now); err != nil {
			return err
		}
		report.UpdatedAt = now
		tx.OnCommit(s.invalidateListCache)
		return nil
	})
	if err != nil {
		return nil, err
	}

	creator, err := s.creator(ctx, report.UserID)
	if err != nil {
		s.logger.Warn("failed to load report creator", zap.String("report_id", report.ID), zap.Error(err))
	}
	view := dto.NewAdminReportView(report, creator)
	return &view, nil
}

// ListMine returns the caller's live reports newest first.
func (s *ReportService) ListMine(ctx context.Context, principal *models.Principal, query dto.ReportListQuery) (*dto.PageResult[dto.ReportView], error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, err
	}
	filter.UserID = &principal.UserID

	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list reports")
	}
	owner := &models.User{ID: principal.UserID, Email: principal.Email}
	views := make([]dto.ReportView, 0, len(reports))
	for i := range reports {
		views = append(views, dto.NewReportView(&reports[i], owner))
	}
	result := dto.NewPage(views, total, filter.Page, filter.Limit)
	return &result, nil
}

// ListAll returns brief summaries of all live reports, served from cache when enabled.
func (s *ReportService) ListAll(ctx context.Context, query dto.ReportListQuery) (*dto.PageResult[dto.ReportSummary], bool, error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, false, err
	}

	key := s.cache.Key(reportListCacheNamespace,
		"status="+query.Status, "priority="+query.Priority,
		"page="+strconv.Itoa(filter.Page), "limit="+strconv.Itoa(filter.Limit))
	var cached dto.PageResult[dto.ReportSummary]
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	items, total, err := s.reports.ListSummaries(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list reports")
	}
	result := dto.NewPage(items, total, filter.Page, filter.Limit)
	s.cache.Set(ctx, key, result, s.cfg.CacheTTL)
	return &result, false, nil
}

func (s *ReportService) buildFilter(query dto.ReportListQuery) (models.ReportFilter, error) {
	page, limit, err := normalizePage(query.Page, query.Limit, s.cfg.Limits)
	if err != nil {
		return models.ReportFilter{}, err
	}
	filter := models.ReportFilter{Page: page, Limit: limit}
	if query.Status != "" {
		status := models.ReportStatus(query.Status)
		if !status.Valid() {
			return models.ReportFilter{}, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}
	if query.Priority != "" {
		priority := models.ReportPriority(query.Priority)
		if !priority.Valid() {
			return models.ReportFilter{}, appErrors.Clone(appErrors.ErrValidation, "invalid priority filter")
		}
		filter.Priority = &priority
	}
	return filter, nil
}

func (s *ReportService) loadLive(ctx context.Context, id string) (*models.CrimeReport, error) {
	if !validID(id) {
		return nil, reportNotFound()
	}
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reportNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load report")
	}
	return report, nil
}

func (s *ReportService) creator(ctx context.Context, userID string) (*models.User, error) {
	users, err := s.users.FindByIDs(ctx, []string{userID})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load report creator")
	}
	return users[userID], nil
}

func (s *ReportService) invalidateListCache() {
	s.cache.Invalidate(context.Background(), reportListCacheNamespace+":*")
}

func reportNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "report not found")
}
