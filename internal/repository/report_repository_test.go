package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crime-report-api/internal/models"
)

var reportCols = []string{"id", "user_id", "title", "description", "location", "incident_date", "status", "priority", "admin_notes", "is_deleted", "deleted_at", "created_at", "updated_at"}

func TestReportRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crime_reports")).
		WithArgs(sqlmock.AnyArg(), "u1", "Stolen bike", "Red bike", nil, nil, "NEW", "MEDIUM", nil, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	report := &models.CrimeReport{UserID: "u1", Title: "Stolen bike", Description: "Red bike", Status: models.ReportStatusNew, Priority: models.PriorityMedium}
	require.NoError(t, repo.Create(context.Background(), nil, report))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, report.CreatedAt, report.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByIDExcludesDeleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM crime_reports WHERE id = $1 AND is_deleted = FALSE")).
		WithArgs("r1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "r1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM crime_reports WHERE id = $1")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(reportCols).AddRow("r1", "u1", "t", "d", nil, nil, "NEW", "LOW", nil, true, now, now, now))

	report, err := repo.GetByIDIncludingDeleted(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, report.IsDeleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	userID := "u1"
	status := models.ReportStatusNew
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM crime_reports WHERE is_deleted = FALSE AND user_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("u1", status).
		WillReturnRows(sqlmock.NewRows(reportCols).AddRow("r1", "u1", "t", "d", nil, nil, "NEW", "LOW", nil, false, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM crime_reports WHERE is_deleted = FALSE AND user_id = $1 AND status = $2")).
		WithArgs("u1", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	reports, total, err := repo.List(context.Background(), models.ReportFilter{UserID: &userID, Status: &status, Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListSummaries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	priority := models.PriorityHigh
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, status, priority, user_id, created_at FROM crime_reports WHERE is_deleted = FALSE AND priority = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(priority).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "priority", "user_id", "created_at"}).AddRow("r1", "t", "NEW", "HIGH", "u1", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM crime_reports")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListSummaries(context.Background(), models.ReportFilter{Priority: &priority})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.PriorityHigh, items[0].Priority)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE crime_reports SET is_deleted = TRUE, deleted_at = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("r1", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), nil, "r1", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusHistoryRepository(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatusHistoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_status_history")).
		WithArgs(sqlmock.AnyArg(), "r1", nil, "NEW", "u1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), nil, &models.ReportStatusHistory{ReportID: "r1", NewStatus: models.ReportStatusNew, ChangedBy: "u1"}))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_status_history WHERE report_id = $1 ORDER BY created_at ASC, seq ASC")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "old_status", "new_status", "changed_by", "notes", "created_at"}).
			AddRow("h1", "r1", nil, "NEW", "u1", nil, now).
			AddRow("h2", "r1", "NEW", "ASSIGNED", "a1", "dispatched", now.Add(time.Minute)))

	entries, err := repo.ListByReport(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].OldStatus)
	require.NotNil(t, entries[1].OldStatus)
	assert.Equal(t, models.ReportStatusNew, *entries[1].OldStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
