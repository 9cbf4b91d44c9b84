package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crime-report-api/internal/models"
)

func TestSessionRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	expires := time.Now().Add(time.Hour)
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(sqlmock.AnyArg(), "u1", "abc", expires, true, "10.0.0.1", "curl", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.Session{UserID: "u1", TokenHash: "abc", ExpiresAt: expires, IsValid: true, IPAddress: "10.0.0.1", UserAgent: "curl"}
	require.NoError(t, repo.Create(context.Background(), nil, session))
	require.NotEmpty(t, session.ID)

	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "is_valid", "ip_address", "user_agent", "created_at", "invalidated_at"}).
		AddRow(session.ID, "u1", "abc", expires, true, "10.0.0.1", "curl", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE token_hash = $1 LIMIT 1")).
		WithArgs("abc").
		WillReturnRows(rows)

	found, err := repo.FindByTokenHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.UserID)
	assert.True(t, found.IsValid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryInvalidateIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET is_valid = FALSE, invalidated_at = $2 WHERE token_hash = $1 AND is_valid = TRUE")).
		WithArgs("abc", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET is_valid = FALSE")).
		WithArgs("abc", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Invalidate(context.Background(), nil, "abc", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Invalidate(context.Background(), nil, "abc", now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	cutoff := time.Now().Add(-time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := repo.DeleteStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
