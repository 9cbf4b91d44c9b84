package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

func newSeedFixture(t *testing.T) (*fixture, *SeedService) {
	f := newFixture(t)
	return f, NewSeedService(f.tx, memUsers{f.db}, testHasher, f.audit, nil)
}

func TestSeedSuperAdminCreatesThenIsIdempotent(t *testing.T) {
	f, seed := newSeedFixture(t)
	ctx := context.Background()

	expectCommits(f.mock, 2)
	result, err := seed.SeedSuperAdmin(ctx, SeedOptions{Email: "Root@X.com", Password: "rootpassword"})
	require.NoError(t, err)
	assert.Equal(t, SeedCreated, result.Outcome)
	assert.Equal(t, "root@x.com", result.Email)
	assert.Equal(t, models.RoleSuperAdmin, f.db.users[result.UserID].Role)

	audit := f.db.lastAudit()
	assert.Equal(t, models.AuditSuperAdminSeeded, audit.Action)
	assert.Nil(t, audit.ActorID)
	assert.Equal(t, "crimectl", audit.UserAgent)

	again, err := seed.SeedSuperAdmin(ctx, SeedOptions{Email: "root@x.com", Password: "rootpassword"})
	require.NoError(t, err)
	assert.Equal(t, SeedUnchanged, again.Outcome)
	assert.Equal(t, result.UserID, again.UserID)
	assert.Len(t, f.db.audits, 1)
}

func TestSeedSuperAdminPromotesExistingUser(t *testing.T) {
	f, seed := newSeedFixture(t)
	bob := f.db.addUser("bob@x.com", models.RoleAdmin)
	before := bob.PasswordHash

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	result, err := seed.SeedSuperAdmin(context.Background(), SeedOptions{Email: "bob@x.com", Password: "another-password"})
	require.NoError(t, err)
	assert.Equal(t, SeedPromoted, result.Outcome)
	assert.Equal(t, models.RoleSuperAdmin, f.db.users[bob.ID].Role)
	assert.Equal(t, before, f.db.users[bob.ID].PasswordHash)
	assert.JSONEq(t, `{"email":"bob@x.com","old_role":"ADMIN","outcome":"promoted"}`, string(f.db.lastAudit().Details))
}

func TestSeedSuperAdminResetsPassword(t *testing.T) {
	f, seed := newSeedFixture(t)
	root := f.db.addUser("root@x.com", models.RoleSuperAdmin)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	result, err := seed.SeedSuperAdmin(context.Background(), SeedOptions{Email: "root@x.com", Password: "fresh-password", ResetPassword: true})
	require.NoError(t, err)
	assert.Equal(t, SeedReset, result.Outcome)
	assert.True(t, testHasher.Verify(f.db.users[root.ID].PasswordHash, "fresh-password"))
}

func TestSeedSuperAdminValidation(t *testing.T) {
	_, seed := newSeedFixture(t)

	_, err := seed.SeedSuperAdmin(context.Background(), SeedOptions{Email: " ", Password: "rootpassword"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, err = seed.SeedSuperAdmin(context.Background(), SeedOptions{Email: "root@x.com", Password: "short"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
