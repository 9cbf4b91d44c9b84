package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crime-report-api/internal/models"
)

const adminRequestColumns = `id, user_id, reason, status, approved_by, admin_notes, created_at, resolved_at`

// AdminRequestRepository persists admin elevation requests.
type AdminRequestRepository struct {
	db *sqlx.DB
}

// NewAdminRequestRepository constructs the repository.
func NewAdminRequestRepository(db *sqlx.DB) *AdminRequestRepository {
	return &AdminRequestRepository{db: db}
}

func (r *AdminRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a PENDING request. A second pending row for the same user violates admin_requests_one_pending.
func (r *AdminRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.AdminRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.AdminRequestPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO admin_requests (id, user_id, reason, status, created_at) VALUES (:id, :user_id, :reason, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("create admin request: %w", err)
	}
	return nil
}

// GetForUpdate locks the request row.
func (r *AdminRequestRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AdminRequest, error) {
	const query = `SELECT ` + adminRequestColumns + ` FROM admin_requests WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, r.exec(exec), "lock admin request", query, id)
}

// FindPendingByUser returns the user's pending request, if any.
func (r *AdminRequestRepository) FindPendingByUser(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.AdminRequest, error) {
	const query = `SELECT ` + adminRequestColumns + ` FROM admin_requests WHERE user_id = $1 AND status = 'PENDING' LIMIT 1`
	return r.getOne(ctx, r.exec(exec), "find pending admin request", query, userID)
}

// LatestByUser returns the user's most recent request.
func (r *AdminRequestRepository) LatestByUser(ctx context.Context, userID string) (*models.AdminRequest, error) {
	const query = `SELECT ` + adminRequestColumns + ` FROM admin_requests WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, r.db, "latest admin request", query, userID)
}

func (r *AdminRequestRepository) getOne(ctx context.Context, target sqlx.QueryerContext, op, query, arg string) (*models.AdminRequest, error) {
	var req models.AdminRequest
	if err := sqlx.GetContext(ctx, target, &req, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &req, nil
}

// Resolve moves a request to a terminal status.
func (r *AdminRequestRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, req *models.AdminRequest) error {
	const query = `UPDATE admin_requests SET status = :status, approved_by = :approved_by, admin_notes = :admin_notes, resolved_at = :resolved_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("resolve admin request: %w", err)
	}
	return nil
}

// List returns requests with PENDING first, then newest first.
func (r *AdminRequestRepository) List(ctx context.Context, filter models.AdminRequestFilter) ([]models.AdminRequest, int, error) {
	where := ""
	var args []interface{}
	if filter.Status != nil {
		where = " WHERE status = $1"
		args = append(args, *filter.Status)
	}
	limit, offset := pageBounds(filter.Page, filter.Limit)

	listQuery := fmt.Sprintf("SELECT %s FROM admin_requests%s ORDER BY (status = 'PENDING') DESC, created_at DESC LIMIT %d OFFSET %d", adminRequestColumns, where, limit, offset)
	var requests []models.AdminRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list admin requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM admin_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count admin requests: %w", err)
	}
	return requests, total, nil
}
