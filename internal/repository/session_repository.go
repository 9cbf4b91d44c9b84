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

const sessionColumns = `id, user_id, token_hash, expires_at, is_valid, ip_address, user_agent, created_at, invalidated_at`

// SessionRepository persists login sessions keyed by token hash.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a session row.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, user_id, token_hash, expires_at, is_valid, ip_address, user_agent, created_at) VALUES (:id, :user_id, :token_hash, :expires_at, :is_valid, :ip_address, :user_agent, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByTokenHash looks up a session by exact hash match.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// Invalidate marks the session invalid. Unknown or already invalid sessions are left untouched.
func (r *SessionRepository) Invalidate(ctx context.Context, exec sqlx.ExtContext, tokenHash string, at time.Time) (bool, error) {
	const query = `UPDATE sessions SET is_valid = FALSE, invalidated_at = $2 WHERE token_hash = $1 AND is_valid = TRUE`
	res, err := r.exec(exec).ExecContext(ctx, query, tokenHash, at)
	if err != nil {
		return false, fmt.Errorf("invalidate session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("invalidate session rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteStale removes sessions that expired or were invalidated before cutoff.
func (r *SessionRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1 OR (is_valid = FALSE AND invalidated_at < $1)`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions rows: %w", err)
	}
	return affected, nil
}
