package dto

import (
	"time"

	"github.com/noah-isme/crime-report-api/internal/models"
)

// RegisterRequest is the POST /auth/register payload.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=100"`
}

// LoginResponse returns the issued session token and user profile.
type LoginResponse struct {
	SessionToken string      `json:"session_token"`
	TokenType    string      `json:"token_type"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         UserProfile `json:"user"`
}

// UserProfile is the public projection of a user.
type UserProfile struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	IsActive  bool            `json:"is_active"`
	IsLocked  bool            `json:"is_locked"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewUserProfile projects a user row.
func NewUserProfile(u *models.User) UserProfile {
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		IsLocked:  u.IsLocked,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// MessageResponse is used by endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}
