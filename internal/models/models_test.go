package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRoleIsAdmin(t *testing.T) {
	assert.False(t, RoleUser.IsAdmin())
	assert.True(t, RoleAdmin.IsAdmin())
	assert.True(t, RoleSuperAdmin.IsAdmin())
	assert.False(t, UserRole("SUPERADMIN").Valid())
}

func TestSessionExpiredAtBoundary(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now}
	assert.True(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(-time.Nanosecond)))
}

func TestUserBriefRole(t *testing.T) {
	u := &User{ID: "u1", Email: "a@x.com", Role: RoleAdmin}
	assert.Empty(t, u.Brief(false).Role)
	assert.Equal(t, RoleAdmin, u.Brief(true).Role)

	var missing *User
	assert.Nil(t, missing.Brief(true))
}

func TestExportFiltersScanNil(t *testing.T) {
	status := ReportStatusNew
	f := ExportFilters{Status: &status}
	require.NoError(t, f.Scan(nil))
	assert.Nil(t, f.Status)

	require.NoError(t, f.Scan([]byte(`{"priority":"HIGH"}`)))
	require.NotNil(t, f.Priority)
	assert.Equal(t, PriorityHigh, *f.Priority)

	assert.Error(t, f.Scan(42))
}
