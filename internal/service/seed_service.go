package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

// Seed outcomes.
const (
	SeedCreated   = "created"
	SeedPromoted  = "promoted"
	SeedReset     = "password_reset"
	SeedUnchanged = "unchanged"
)

type seedUserStore interface {
	FindByEmailForUpdate(ctx context.Context, exec sqlx.ExtContext, email string) (*models.User, error)
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
	UpdateRole(ctx context.Context, exec sqlx.ExtContext, id string, role models.UserRole, updatedAt time.Time) error
	UpdatePassword(ctx context.Context, exec sqlx.ExtContext, id, passwordHash string, updatedAt time.Time) error
}

// SeedOptions controls SeedSuperAdmin.
type SeedOptions struct {
	Email    string
	Password string
	// ResetPassword replaces the stored hash of an existing account.
	ResetPassword bool
}

// SeedResult reports what SeedSuperAdmin did.
type SeedResult struct {
	UserID  string
	Email   string
	Outcome string
}

// SeedService bootstraps the first SUPER_ADMIN account.
type SeedService struct {
	tx     txProvider
	users  seedUserStore
	hasher PasswordHasher
	audit  auditRecorder
	logger *zap.Logger
}

// NewSeedService constructs a SeedService.
func NewSeedService(tx txProvider, users seedUserStore, hasher PasswordHasher, audit auditRecorder, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &SeedService{tx: tx, users: users, hasher: hasher, audit: audit, logger: logger}
}

// SeedSuperAdmin creates or promotes the account for opts.Email. Running it twice is safe.
func (s *SeedService) SeedSuperAdmin(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	email := normalizeEmail(opts.Email)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "super admin email is required")
	}
	if len(opts.Password) < 8 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "super admin password must be at least 8 characters")
	}

	result := &SeedResult{Email: email, Outcome: SeedUnchanged}
	err := withTx(ctx, s.tx, func(tx *txScope) error {
		user, err := s.users.FindByEmailForUpdate(ctx, tx, email)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to load user")
		}

		details := map[string]interface{}{"email": email}
		now := time.Now().UTC()
		switch {
		case user == nil:
			hash, err := s.hasher.Hash(opts.Password)
			if err != nil {
				return appErrors.Internal(err, "failed to hash password")
			}
			user = &models.User{Email: email, PasswordHash: hash, Role: models.RoleSuperAdmin, IsActive: true}
			if err := s.users.Create(ctx, tx, user); err != nil {
				return appErrors.Internal(err, "failed to create super admin")
			}
			result.Outcome = SeedCreated
		case user.Role != models.RoleSuperAdmin:
			details["old_role"] = user.Role
			if err := s.users.UpdateRole(ctx, tx, user.ID, models.RoleSuperAdmin, now); err != nil {
				return appErrors.Internal(err, "failed to promote super admin")
			}
			result.Outcome = SeedPromoted
		}
		result.UserID = user.ID

		if opts.ResetPassword && result.Outcome != SeedCreated {
			hash, err := s.hasher.Hash(opts.Password)
			if err != nil {
				return appErrors.Internal(err, "failed to hash password")
			}
			if err := s.users.UpdatePassword(ctx, tx, user.ID, hash, now); err != nil {
				return appErrors.Internal(err, "failed to reset password")
			}
			details["password_reset"] = true
			if result.Outcome == SeedUnchanged {
				result.Outcome = SeedReset
			}
		}

		if result.Outcome == SeedUnchanged {
			return nil
		}
		details["outcome"] = result.Outcome
		_, err = s.audit.Record(ctx, tx, AuditEntry{
			Action:       models.AuditSuperAdminSeeded,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			Details:      details,
			Meta:         models.ClientMeta{UserAgent: "crimectl"},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("super admin seeded", zap.String("user_id", result.UserID), zap.String("outcome", result.Outcome))
	return result, nil
}
