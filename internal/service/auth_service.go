package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/pkg/database"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

const usersEmailConstraint = "users_email_key"

type authUserRepository interface {
	FindByEmail(ctx context.Context, exec sqlx.ExtContext, email string) (*models.User, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error)
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
}

type sessionAuthority interface {
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User, meta models.ClientMeta) (*models.Session, string, error)
	Invalidate(ctx context.Context, exec sqlx.ExtContext, token string) error
}

// AuthService provides registration, login and logout.
type AuthService struct {
	tx        txProvider
	users     authUserRepository
	sessions  sessionAuthority
	hasher    PasswordHasher
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(tx txProvider, users authUserRepository, sessions sessionAuthority, hasher PasswordHasher, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &AuthService{tx: tx, users: users, sessions: sessions, hasher: hasher, audit: audit, validator: validate, logger: logger}
}

// Register creates an active USER account.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest, meta models.ClientMeta) (*dto.UserProfile, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}

	err = withTx(ctx, s.tx, func(tx *txScope) error {
		if _, err := s.users.FindByEmail(ctx, tx, req.Email); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "email already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to check email")
		}
		if err := s.users.Create(ctx, tx, user); err != nil {
			if database.IsUniqueViolation(err, usersEmailConstraint) {
				return appErrors.Clone(appErrors.ErrConflict, "email already exists")
			}
			return appErrors.Internal(err, "failed to create user")
		}
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &user.ID,
			Action:       models.AuditUserRegistered,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			Details:      map[string]interface{}{"email": user.Email},
			Meta:         meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	profile := dto.NewUserProfile(user)
	return &profile, nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest, meta models.ClientMeta) (*dto.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, nil, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if !s.hasher.Verify(user.PasswordHash, req.Password) {
		return nil, appErrors.ErrInvalidCredentials
	}
	if user.IsLocked {
		return nil, appErrors.ErrLockedAccount
	}
	if !user.IsActive {
		return nil, appErrors.ErrInactiveAccount
	}

	var (
		session *models.Session
		token   string
	)
	err = withTx(ctx, s.tx, func(tx *txScope) error {
		var err error
		session, token, err = s.sessions.Create(ctx, tx, user, meta)
		if err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &user.ID,
			Action:       models.AuditUserLogin,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			Meta:         meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		SessionToken: token,
		TokenType:    "bearer",
		ExpiresAt:    session.ExpiresAt,
		User:         dto.NewUserProfile(user),
	}, nil
}

// Logout invalidates token. It never fails for an unknown or already invalid token.
func (s *AuthService) Logout(ctx context.Context, principal *models.Principal, token string, meta models.ClientMeta) error {
	err := withTx(ctx, s.tx, func(tx *txScope) error {
		if err := s.sessions.Invalidate(ctx, tx, token); err != nil {
			return err
		}
		entry := AuditEntry{Action: models.AuditUserLogout, ResourceType: models.ResourceUser, Meta: meta}
		if principal != nil {
			entry.ActorID = &principal.UserID
			entry.ResourceID = principal.UserID
		}
		_, err := s.audit.Record(ctx, tx, entry)
		return err
	})
	if err == nil {
		return nil
	}

	s.logger.Warn("logout transaction failed, invalidating without audit", zap.Error(err))
	if err := s.sessions.Invalidate(ctx, nil, token); err != nil {
		s.logger.Error("logout invalidation failed", zap.Error(err))
	}
	return nil
}

// Me returns the profile of the authenticated caller.
func (s *AuthService) Me(ctx context.Context, principal *models.Principal) (*dto.UserProfile, error) {
	if principal == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, nil, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	profile := dto.NewUserProfile(user)
	return &profile, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
