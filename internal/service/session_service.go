package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/models"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

const sessionTokenBytes = 32

type sessionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Invalidate(ctx context.Context, exec sqlx.ExtContext, tokenHash string, at time.Time) (bool, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionUserLookup interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error)
}

// SessionConfig tunes session lifetime and storage hygiene.
type SessionConfig struct {
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
}

// SessionService issues, resolves and invalidates opaque session tokens.
type SessionService struct {
	sessions sessionStore
	users    sessionUserLookup
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      SessionConfig
	now      func() time.Time
}

// NewSessionService constructs the session authority.
func NewSessionService(sessions sessionStore, users sessionUserLookup, metrics *MetricsService, logger *zap.Logger, cfg SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.CleanupRetention <= 0 {
		cfg.CleanupRetention = 7 * 24 * time.Hour
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a new token for user. Only the token hash is persisted.
func (s *SessionService) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User, meta models.ClientMeta) (*models.Session, string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to generate session token")
	}
	now := s.now()
	session := &models.Session{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(s.cfg.TTL),
		IsValid:   true,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, exec, session); err != nil {
		return nil, "", appErrors.Internal(err, "failed to create session")
	}
	afterCommit(exec, s.metrics.SessionIssued)
	return session, token, nil
}

// Resolve maps a token to its principal. The user row is re-read every time so locks apply immediately.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return nil, s.reject("missing", appErrors.Clone(appErrors.ErrUnauthorized, "missing session token"))
	}
	session, err := s.sessions.FindByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reject("unknown", appErrors.Clone(appErrors.ErrUnauthorized, "invalid session token"))
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}
	if !session.IsValid {
		return nil, s.reject("invalidated", appErrors.ErrSessionInvalidated)
	}
	if session.Expired(s.now()) {
		return nil, s.reject("expired", appErrors.ErrSessionExpired)
	}

	user, err := s.users.FindByID(ctx, nil, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reject("unknown_user", appErrors.Clone(appErrors.ErrUnauthorized, "invalid session token"))
		}
		return nil, appErrors.Internal(err, "failed to load session user")
	}
	if !user.IsActive {
		return nil, s.reject("inactive", appErrors.ErrInactiveAccount)
	}
	if user.IsLocked {
		return nil, s.reject("locked", appErrors.ErrLockedAccount)
	}

	s.metrics.SessionResolved()
	return &models.Principal{UserID: user.ID, Email: user.Email, Role: user.Role, SessionID: session.ID}, nil
}

func (s *SessionService) reject(reason string, err error) error {
	s.metrics.SessionRejected(reason)
	return err
}

// Invalidate marks the token's session invalid. Empty, unknown and already invalid tokens are no-ops.
func (s *SessionService) Invalidate(ctx context.Context, exec sqlx.ExtContext, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.sessions.Invalidate(ctx, exec, hashToken(token), s.now()); err != nil {
		return appErrors.Internal(err, "failed to invalidate session")
	}
	return nil
}

// StartReaper periodically deletes sessions that ended more than the retention period ago.
func (s *SessionService) StartReaper(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reap(ctx)
			}
		}
	}()
}

func (s *SessionService) reap(ctx context.Context) {
	removed, err := s.sessions.DeleteStale(ctx, s.now().Add(-s.cfg.CleanupRetention))
	if err != nil {
		s.logger.Warn("session cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("session cleanup", zap.Int64("removed", removed))
	}
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header")
	}
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

func generateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
