package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/pkg/database"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

const adminRequestsPendingConstraint = "admin_requests_one_pending"

type adminRequestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.AdminRequest) error
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AdminRequest, error)
	FindPendingByUser(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.AdminRequest, error)
	LatestByUser(ctx context.Context, userID string) (*models.AdminRequest, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, req *models.AdminRequest) error
	List(ctx context.Context, filter models.AdminRequestFilter) ([]models.AdminRequest, int, error)
}

type adminUserStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	UpdateRole(ctx context.Context, exec sqlx.ExtContext, id string, role models.UserRole, updatedAt time.Time) error
	SetLocked(ctx context.Context, exec sqlx.ExtContext, id string, locked bool, updatedAt time.Time) error
}

// AdminService runs the admin elevation workflow and account moderation.
type AdminService struct {
	tx        txProvider
	requests  adminRequestStore
	users     adminUserStore
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	limits    PageLimits
	now       func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(tx txProvider, requests adminRequestStore, users adminUserStore, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, limits PageLimits) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdminService{
		tx:        tx,
		requests:  requests,
		users:     users,
		audit:     audit,
		validator: validate,
		logger:    logger,
		limits:    limits.withDefaults(DefaultPageLimits),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Request files a PENDING elevation request for a plain USER.
func (s *AdminService) Request(ctx context.Context, principal *models.Principal, req dto.AdminElevationRequest, meta models.ClientMeta) (*dto.AdminRequestView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admin request payload")
	}
	if principal.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you already have admin privileges")
	}

	request := &models.AdminRequest{
		UserID:    principal.UserID,
		Reason:    req.Reason,
		Status:    models.AdminRequestPending,
		CreatedAt: s.now(),
	}
	err := withTx(ctx, s.tx, func(tx *txScope) error {
		_, err := s.requests.FindPendingByUser(ctx, tx, principal.UserID)
		switch {
		case err == nil:
			return pendingConflict()
		case !errors.Is(err, sql.ErrNoRows):
			return appErrors.Internal(err, "failed to check pending admin requests")
		}
		if err := s.requests.Create(ctx, tx, request); err != nil {
			if database.IsUniqueViolation(err, adminRequestsPendingConstraint) {
				return pendingConflict()
			}
			return appErrors.Internal(err, "failed to create admin request")
		}
		_, err = s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditAdminRequested,
			ResourceType: models.ResourceAdminRequest,
			ResourceID:   request.ID,
			Details:      map[string]interface{}{"reason": req.Reason},
			Meta:         meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	requester, err := s.users.FindByID(ctx, nil, principal.UserID)
	if err != nil {
		s.logger.Warn("failed to load requester", zap.String("user_id", principal.UserID), zap.Error(err))
		requester = nil
	}
	view := dto.NewAdminRequestView(request, requester, nil)
	return &view, nil
}

// Approve resolves a PENDING request and promotes the requester to ADMIN in the same transaction.
func (s *AdminService) Approve(ctx context.Context, principal *models.Principal, id string, req dto.ResolveAdminRequest, meta models.ClientMeta) (*dto.AdminRequestView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	var requester *models.User
	request, err := s.resolve(ctx, principal, id, models.AdminRequestApproved, req.AdminNotes, func(tx *txScope, request *models.AdminRequest, now time.Time) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, request.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "requesting user not found")
			}
			return appErrors.Internal(err, "failed to load requesting user")
		}
		oldRole := user.Role
		if oldRole == models.RoleUser {
			if err := s.users.UpdateRole(ctx, tx, user.ID, models.RoleAdmin, now); err != nil {
				return appErrors.Internal(err, "failed to promote user")
			}
			user.Role = models.RoleAdmin
			user.UpdatedAt = now
		}
		requester = user
		_, err = s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditAdminApproved,
			ResourceType: models.ResourceAdminRequest,
			ResourceID:   request.ID,
			Details: map[string]interface{}{
				"user_id":  user.ID,
				"old_role": oldRole,
				"new_role": user.Role,
				"notes":    req.AdminNotes,
			},
			Meta: meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	view := dto.NewAdminRequestView(request, requester, s.approver(ctx, principal))
	return &view, nil
}

// Reject resolves a PENDING request without touching the requester's role.
func (s *AdminService) Reject(ctx context.Context, principal *models.Principal, id string, req dto.ResolveAdminRequest, meta models.ClientMeta) (*dto.AdminRequestView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	request, err := s.resolve(ctx, principal, id, models.AdminRequestRejected, req.AdminNotes, func(tx *txScope, request *models.AdminRequest, _ time.Time) error {
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditAdminRejected,
			ResourceType: models.ResourceAdminRequest,
			ResourceID:   request.ID,
			Details:      map[string]interface{}{"user_id": request.UserID, "notes": req.AdminNotes},
			Meta:         meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	requester, err := s.users.FindByID(ctx, nil, request.UserID)
	if err != nil {
		requester = nil
	}
	view := dto.NewAdminRequestView(request, requester, s.approver(ctx, principal))
	return &view, nil
}

func (s *AdminService) resolve(ctx context.Context, principal *models.Principal, id string, status models.AdminRequestStatus, notes *string, fn func(tx *txScope, request *models.AdminRequest, now time.Time) error) (*models.AdminRequest, error) {
	if !validID(id) {
		return nil, requestNotFound()
	}
	var request *models.AdminRequest
	err := withTx(ctx, s.tx, func(tx *txScope) error {
		var err error
		request, err = s.requests.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return requestNotFound()
			}
			return appErrors.Internal(err, "failed to load admin request")
		}
		if request.Status != models.AdminRequestPending {
			return appErrors.Clone(appErrors.ErrConflict, "admin request already resolved")
		}
		now := s.now()
		if err := fn(tx, request, now); err != nil {
			return err
		}
		request.Status = status
		request.ApprovedBy = &principal.UserID
		request.AdminNotes = notes
		request.ResolvedAt = &now
		if err := s.requests.Resolve(ctx, tx, request); err != nil {
			return appErrors.Internal(err, "failed to resolve admin request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Revoke demotes an ADMIN back to USER. SUPER_ADMIN cannot be revoked.
func (s *AdminService) Revoke(ctx context.Context, principal *models.Principal, userID string, req dto.ReasonRequest, meta models.ClientMeta) (*dto.RoleChangeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revoke payload")
	}
	var resp *dto.RoleChangeResponse
	err := s.moderate(ctx, userID, func(tx *txScope, user *models.User, now time.Time) error {
		if user.Role != models.RoleAdmin {
			return appErrors.Clone(appErrors.ErrConflict, "user is not an admin")
		}
		if err := s.users.UpdateRole(ctx, tx, user.ID, models.RoleUser, now); err != nil {
			return appErrors.Internal(err, "failed to revoke admin role")
		}
		if _, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       models.AuditAdminRevoked,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			Details:      map[string]interface{}{"reason": req.Reason, "old_role": user.Role, "new_role": models.RoleUser},
			Meta:         meta,
		}); err != nil {
			return err
		}
		resp = &dto.RoleChangeResponse{UserID: user.ID, Email: user.Email, OldRole: user.Role, NewRole: models.RoleUser, UpdatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Lock blocks an account from logging in or using existing sessions. SUPER_ADMIN is immune.
func (s *AdminService) Lock(ctx context.Context, principal *models.Principal, userID string, req dto.ReasonRequest, meta models.ClientMeta) (*dto.LockStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lock payload")
	}
	return s.setLocked(ctx, principal, userID, true, map[string]interface{}{"reason": req.Reason}, meta)
}

// Unlock reverses Lock.
func (s *AdminService) Unlock(ctx context.Context, principal *models.Principal, userID string, meta models.ClientMeta) (*dto.LockStatusResponse, error) {
	return s.setLocked(ctx, principal, userID, false, map[string]interface{}{}, meta)
}

func (s *AdminService) setLocked(ctx context.Context, principal *models.Principal, userID string, locked bool, details map[string]interface{}, meta models.ClientMeta) (*dto.LockStatusResponse, error) {
	action := models.AuditUserLocked
	if !locked {
		action = models.AuditUserUnlocked
	}
	var resp *dto.LockStatusResponse
	err := s.moderate(ctx, userID, func(tx *txScope, user *models.User, now time.Time) error {
		if locked && user.Role == models.RoleSuperAdmin {
			return appErrors.Clone(appErrors.ErrBadRequest, "super admin accounts cannot be locked")
		}
		if user.IsLocked == locked {
			if locked {
				return appErrors.Clone(appErrors.ErrConflict, "user is already locked")
			}
			return appErrors.Clone(appErrors.ErrConflict, "user is not locked")
		}
		if err := s.users.SetLocked(ctx, tx, user.ID, locked, now); err != nil {
			return appErrors.Internal(err, "failed to update lock state")
		}
		details["old_is_locked"] = user.IsLocked
		details["new_is_locked"] = locked
		if _, err := s.audit.Record(ctx, tx, AuditEntry{
			ActorID:      &principal.UserID,
			Action:       action,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			Details:      details,
			Meta:         meta,
		}); err != nil {
			return err
		}
		resp = &dto.LockStatusResponse{UserID: user.ID, Email: user.Email, IsLocked: locked, UpdatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// moderate locks the target user row and applies fn in one transaction.
func (s *AdminService) moderate(ctx context.Context, userID string, fn func(tx *txScope, user *models.User, now time.Time) error) error {
	if !validID(userID) {
		return userNotFound()
	}
	return withTx(ctx, s.tx, func(tx *txScope) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return userNotFound()
			}
			return appErrors.Internal(err, "failed to load user")
		}
		return fn(tx, user, s.now())
	})
}

// ListRequests lists requests with PENDING first, then newest first.
func (s *AdminService) ListRequests(ctx context.Context, query dto.AdminRequestListQuery) (*dto.PageResult[dto.AdminRequestView], error) {
	page, limit, err := normalizePage(query.Page, query.Limit, s.limits)
	if err != nil {
		return nil, err
	}
	filter := models.AdminRequestFilter{Page: page, Limit: limit}
	if query.Status != "" {
		status := models.AdminRequestStatus(query.Status)
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}

	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list admin requests")
	}
	ids := make([]string, 0, len(requests)*2)
	for _, r := range requests {
		ids = append(ids, r.UserID)
		if r.ApprovedBy != nil {
			ids = append(ids, *r.ApprovedBy)
		}
	}
	users, err := s.users.FindByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load request users")
	}

	views := make([]dto.AdminRequestView, 0, len(requests))
	for i := range requests {
		r := &requests[i]
		var approver *models.User
		if r.ApprovedBy != nil {
			approver = users[*r.ApprovedBy]
		}
		views = append(views, dto.NewAdminRequestView(r, users[r.UserID], approver))
	}
	result := dto.NewPage(views, total, page, limit)
	return &result, nil
}

// MyRequestStatus returns the caller's most recent request.
func (s *AdminService) MyRequestStatus(ctx context.Context, principal *models.Principal) (*dto.AdminRequestStatusResponse, error) {
	request, err := s.requests.LatestByUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.AdminRequestStatusResponse{HasRequest: false}, nil
		}
		return nil, appErrors.Internal(err, "failed to load admin request")
	}
	var approver *models.User
	if request.ApprovedBy != nil {
		if approver, err = s.users.FindByID(ctx, nil, *request.ApprovedBy); err != nil {
			approver = nil
		}
	}
	view := dto.NewAdminRequestView(request, nil, approver)
	return &dto.AdminRequestStatusResponse{HasRequest: true, Request: &view}, nil
}

func (s *AdminService) approver(ctx context.Context, principal *models.Principal) *models.User {
	user, err := s.users.FindByID(ctx, nil, principal.UserID)
	if err != nil {
		return &models.User{ID: principal.UserID, Email: principal.Email, Role: principal.Role}
	}
	return user
}

func pendingConflict() error {
	return appErrors.Clone(appErrors.ErrConflict, "admin request already pending")
}

func requestNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "admin request not found")
}

func userNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "user not found")
}
