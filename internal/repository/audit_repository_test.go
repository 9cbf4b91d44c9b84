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

func TestAuditRepositoryCreateDefaultsDetails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), nil, models.AuditUserLogin, nil, nil, []byte(`{}`), "1.2.3.4", "ua", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditUserLogin, IPAddress: "1.2.3.4", UserAgent: "ua"}
	require.NoError(t, repo.Create(context.Background(), nil, entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE action = $1 AND actor_id = $2 AND created_at >= $3 ORDER BY created_at DESC, seq DESC LIMIT 50 OFFSET 50")).
		WithArgs(models.AuditReportCreated, "u1", start).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "action", "resource_type", "resource_id", "details", "ip_address", "user_agent", "created_at"}).
			AddRow("a1", "u1", models.AuditReportCreated, models.ResourceCrimeReport, "r1", `{"title":"x"}`, "", "", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE action = $1 AND actor_id = $2 AND created_at >= $3")).
		WithArgs(models.AuditReportCreated, "u1", start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(51))

	logs, total, err := repo.List(context.Background(), models.AuditFilter{
		Action:    models.AuditReportCreated,
		ActorID:   "u1",
		StartDate: &start,
		Page:      2,
		Limit:     50,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 51, total)
	assert.JSONEq(t, `{"title":"x"}`, string(logs[0].Details))
	assert.NoError(t, mock.ExpectationsWereMet())
}
