package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

func TestCrimeReportWorkflowEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	meta := models.ClientMeta{IP: "203.0.113.7", UserAgent: "curl/8"}
	root := f.db.addUser("root@x.com", models.RoleSuperAdmin)
	bob := f.db.addUser("bob@x.com", models.RoleUser)

	// register, login, file a report
	expectCommits(f.mock, 3)
	_, err := f.auth.Register(ctx, dto.RegisterRequest{Email: "alice@x.com", Password: "password123"}, meta)
	require.NoError(t, err)
	login, err := f.auth.Login(ctx, dto.LoginRequest{Email: "alice@x.com", Password: "password123"}, meta)
	require.NoError(t, err)
	alice, err := f.sessions.Resolve(ctx, login.SessionToken)
	require.NoError(t, err)
	report, err := f.reports.Create(ctx, alice, dto.CreateReportRequest{Title: "Stolen bike", Description: "Taken from the rack"}, meta)
	require.NoError(t, err)

	history, err := f.reports.History(ctx, alice, report.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ReportStatusNew, history[0].NewStatus)

	// elevation request approved by the super admin
	expectCommits(f.mock, 2)
	request, err := f.admin.Request(ctx, alice, dto.AdminElevationRequest{}, meta)
	require.NoError(t, err)
	approved, err := f.admin.Approve(ctx, principalOf(root), request.ID, dto.ResolveAdminRequest{}, meta)
	require.NoError(t, err)
	assert.Equal(t, models.AdminRequestApproved, approved.Status)
	require.NotNil(t, approved.Approver)
	assert.Equal(t, root.ID, approved.Approver.ID)
	require.NotNil(t, approved.ResolvedAt)

	// the same session now carries the new role
	alice, err = f.sessions.Resolve(ctx, login.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, alice.Role)
	_, err = Authorize(alice, AdminRoles...)
	require.NoError(t, err)

	// admin moves the report along
	expectCommits(f.mock, 1)
	note := "dispatched"
	_, err = f.reports.SetStatus(ctx, alice, report.ID, dto.UpdateStatusRequest{Status: models.ReportStatusAssigned, Notes: &note}, meta)
	require.NoError(t, err)
	history, err = f.reports.History(ctx, alice, report.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[1].OldStatus)
	assert.Equal(t, models.ReportStatusNew, *history[1].OldStatus)
	assert.Equal(t, models.ReportStatusAssigned, history[1].NewStatus)

	// another user cannot read it
	_, err = f.reports.Get(ctx, principalOf(bob), report.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	// logout kills the token
	expectCommits(f.mock, 1)
	require.NoError(t, f.auth.Logout(ctx, alice, login.SessionToken, meta))
	_, err = f.sessions.Resolve(ctx, login.SessionToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionInvalidated))
	assert.Equal(t, 401, appErrors.FromError(err).Status)

	assert.Equal(t, []string{
		models.AuditUserRegistered,
		models.AuditUserLogin,
		models.AuditReportCreated,
		models.AuditAdminRequested,
		models.AuditAdminApproved,
		models.AuditReportStatusChanged,
		models.AuditUserLogout,
	}, f.db.auditActions())
	for _, a := range f.db.audits {
		assert.Equal(t, "203.0.113.7", a.IPAddress)
	}
}
