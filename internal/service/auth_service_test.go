package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

func TestAuthServiceRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	profile, err := f.auth.Register(ctx, dto.RegisterRequest{Email: "  Alice@X.com ", Password: "password123"}, models.ClientMeta{IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", profile.Email)
	assert.Equal(t, models.RoleUser, profile.Role)
	assert.True(t, profile.IsActive)
	assert.False(t, profile.IsLocked)

	audit := f.db.lastAudit()
	assert.Equal(t, models.AuditUserRegistered, audit.Action)
	assert.Equal(t, "1.2.3.4", audit.IPAddress)
	assert.NotEqual(t, "password123", f.db.users[profile.ID].PasswordHash)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.auth.Register(ctx, dto.RegisterRequest{Email: "ALICE@x.com", Password: "password123"}, models.ClientMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = f.auth.Register(ctx, dto.RegisterRequest{Email: "bob@x.com", Password: "short"}, models.ClientMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLogin(t *testing.T) {
	f := newFixture(t)
	alice := f.db.addUser("alice@x.com", models.RoleUser)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	resp, err := f.auth.Login(ctx, dto.LoginRequest{Email: "ALICE@x.com", Password: "password123"}, models.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, alice.ID, resp.User.ID)
	assert.Equal(t, models.AuditUserLogin, f.db.lastAudit().Action)

	principal, err := f.sessions.Resolve(ctx, resp.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, principal.UserID)

	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: "alice@x.com", Password: "wrong-password"}, models.ClientMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: "nobody@x.com", Password: "password123"}, models.ClientMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	f.db.users[alice.ID].IsLocked = true
	f.db.users[alice.ID].IsActive = false
	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: "alice@x.com", Password: "password123"}, models.ClientMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrLockedAccount))

	f.db.users[alice.ID].IsLocked = false
	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: "alice@x.com", Password: "password123"}, models.ClientMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceLoginRollsBackSessionWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("alice@x.com", models.RoleUser)
	f.db.auditErr = errors.New("audit down")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.auth.Login(context.Background(), dto.LoginRequest{Email: "alice@x.com", Password: "password123"}, models.ClientMeta{})
	require.Error(t, err)
}

func TestAuthServiceLogout(t *testing.T) {
	f := newFixture(t)
	alice := f.db.addUser("alice@x.com", models.RoleUser)
	ctx := context.Background()

	expectCommits(f.mock, 3)
	resp, err := f.auth.Login(ctx, dto.LoginRequest{Email: "alice@x.com", Password: "password123"}, models.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, principalOf(alice), resp.SessionToken, models.ClientMeta{}))
	assert.Equal(t, models.AuditUserLogout, f.db.lastAudit().Action)
	_, err = f.sessions.Resolve(ctx, resp.SessionToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionInvalidated))

	require.NoError(t, f.auth.Logout(ctx, principalOf(alice), resp.SessionToken, models.ClientMeta{}))
}

func TestAuthServiceLogoutStillInvalidatesWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	alice := f.db.addUser("alice@x.com", models.RoleUser)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	resp, err := f.auth.Login(ctx, dto.LoginRequest{Email: "alice@x.com", Password: "password123"}, models.ClientMeta{})
	require.NoError(t, err)

	f.db.auditErr = errors.New("audit down")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	require.NoError(t, f.auth.Logout(ctx, principalOf(alice), resp.SessionToken, models.ClientMeta{}))

	_, err = f.sessions.Resolve(ctx, resp.SessionToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionInvalidated))
}

func TestAuthServiceMe(t *testing.T) {
	f := newFixture(t)
	alice := f.db.addUser("alice@x.com", models.RoleUser)

	profile, err := f.auth.Me(context.Background(), principalOf(alice))
	require.NoError(t, err)
	assert.Equal(t, alice.Email, profile.Email)

	_, err = f.auth.Me(context.Background(), nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
