package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
)

const reportColumns = `id, user_id, title, description, location, incident_date, status, priority, admin_notes, is_deleted, deleted_at, created_at, updated_at`

// ReportRepository persists crime reports. Rows are never physically removed.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new report row.
func (r *ReportRepository) Create(ctx context.Context, exec sqlx.ExtContext, report *models.CrimeReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = report.CreatedAt

	const query = `INSERT INTO crime_reports (id, user_id, title, description, location, incident_date, status, priority, admin_notes, is_deleted, created_at, updated_at)
VALUES (:id, :user_id, :title, :description, :location, :incident_date, :status, :priority, :admin_notes, :is_deleted, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, report); err != nil {
		return fmt.Errorf("create crime report: %w", err)
	}
	return nil
}

// GetByID returns a live report. Soft-deleted rows yield sql.ErrNoRows.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.CrimeReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM crime_reports WHERE id = $1 AND is_deleted = FALSE`
	return r.getOne(ctx, r.db, "get crime report", query, id)
}

// GetByIDIncludingDeleted returns a report regardless of its deletion flag.
func (r *ReportRepository) GetByIDIncludingDeleted(ctx context.Context, id string) (*models.CrimeReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM crime_reports WHERE id = $1`
	return r.getOne(ctx, r.db, "get crime report", query, id)
}

// GetForUpdate locks a live report row until the transaction ends.
func (r *ReportRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CrimeReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM crime_reports WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`
	return r.getOne(ctx, r.exec(exec), "lock crime report", query, id)
}

func (r *ReportRepository) getOne(ctx context.Context, target sqlx.QueryerContext, op, query, id string) (*models.CrimeReport, error) {
	var report models.CrimeReport
	if err := sqlx.GetContext(ctx, target, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &report, nil
}

// UpdateStatus writes a new status.
func (r *ReportRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ReportStatus, updatedAt time.Time) error {
	const query = `UPDATE crime_reports SET status = $2, updated_at = $3 WHERE id = $1`
	return r.update(ctx, exec, "update report status", query, id, status, updatedAt)
}

// UpdatePriority writes a new priority.
func (r *ReportRepository) UpdatePriority(ctx context.Context, exec sqlx.ExtContext, id string, priority models.ReportPriority, updatedAt time.Time) error {
	const query = `UPDATE crime_reports SET priority = $2, updated_at = $3 WHERE id = $1`
	return r.update(ctx, exec, "update report priority", query, id, priority, updatedAt)
}

// UpdateNotes replaces the admin notes.
func (r *ReportRepository) UpdateNotes(ctx context.Context, exec sqlx.ExtContext, id string, notes *string, updatedAt time.Time) error {
	const query = `UPDATE crime_reports SET admin_notes = $2, updated_at = $3 WHERE id = $1`
	return r.update(ctx, exec, "update report notes", query, id, notes, updatedAt)
}

// SoftDelete flags the report as deleted.
func (r *ReportRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error {
	const query = `UPDATE crime_reports SET is_deleted = TRUE, deleted_at = $2, updated_at = $3 WHERE id = $1`
	return r.update(ctx, exec, "soft delete report", query, id, deletedAt, deletedAt)
}

func (r *ReportRepository) update(ctx context.Context, exec sqlx.ExtContext, op, query string, args ...interface{}) error {
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func reportWhere(filter models.ReportFilter) (string, []interface{}) {
	conditions := []string{"is_deleted = FALSE"}
	var args []interface{}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return limit, (page - 1) * limit
}

// List returns full live report rows newest first with the total count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.CrimeReport, int, error) {
	where, args := reportWhere(filter)
	limit, offset := pageBounds(filter.Page, filter.Limit)

	listQuery := fmt.Sprintf("SELECT %s FROM crime_reports%s ORDER BY created_at DESC LIMIT %d OFFSET %d", reportColumns, where, limit, offset)
	var reports []models.CrimeReport
	if err := r.db.SelectContext(ctx, &reports, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list crime reports: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM crime_reports"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count crime reports: %w", err)
	}
	return reports, total, nil
}

// ListSummaries returns the brief projection of live reports newest first.
func (r *ReportRepository) ListSummaries(ctx context.Context, filter models.ReportFilter) ([]dto.ReportSummary, int, error) {
	where, args := reportWhere(filter)
	limit, offset := pageBounds(filter.Page, filter.Limit)

	listQuery := fmt.Sprintf("SELECT id, title, status, priority, user_id, created_at FROM crime_reports%s ORDER BY created_at DESC LIMIT %d OFFSET %d", where, limit, offset)
	var items []dto.ReportSummary
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list report summaries: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM crime_reports"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count report summaries: %w", err)
	}
	return items, total, nil
}

// ListForExport returns every live report matching the filters, oldest first.
func (r *ReportRepository) ListForExport(ctx context.Context, filters models.ExportFilters) ([]models.CrimeReport, error) {
	where, args := reportWhere(models.ReportFilter{Status: filters.Status, Priority: filters.Priority})
	query := fmt.Sprintf("SELECT %s FROM crime_reports%s ORDER BY created_at ASC", reportColumns, where)
	var reports []models.CrimeReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("list reports for export: %w", err)
	}
	return reports, nil
}

// StatusHistoryRepository appends and reads report status history. It has no update or delete.
type StatusHistoryRepository struct {
	db *sqlx.DB
}

// NewStatusHistoryRepository constructs the repository.
func NewStatusHistoryRepository(db *sqlx.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

// Create appends one history row.
func (r *StatusHistoryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.ReportStatusHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if exec == nil {
		exec = r.db
	}
	const query = `INSERT INTO report_status_history (id, report_id, old_status, new_status, changed_by, notes, created_at)
VALUES (:id, :report_id, :old_status, :new_status, :changed_by, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, entry); err != nil {
		return fmt.Errorf("create status history: %w", err)
	}
	return nil
}

// ListByReport returns a report's history oldest first.
func (r *StatusHistoryRepository) ListByReport(ctx context.Context, reportID string) ([]models.ReportStatusHistory, error) {
	const query = `SELECT id, report_id, old_status, new_status, changed_by, notes, created_at FROM report_status_history WHERE report_id = $1 ORDER BY created_at ASC, seq ASC`
	var entries []models.ReportStatusHistory
	if err := r.db.SelectContext(ctx, &entries, query, reportID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return entries, nil
}
