package auth

import (
	"time"

	"github.com/carewellhq/carewell-backend/internal/users"
	"github.com/carewellhq/carewell-backend/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the token pair and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RefreshRequest carries the refresh token presented alongside the expired access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse returns the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest contains the payload for patient self-registration.
type RegisterRequest struct {
	FirstName   string            `json:"first_name" validate:"required"`
	LastName    string            `json:"last_name" validate:"required"`
	Email       string            `json:"email" validate:"required,email"`
	Password    string            `json:"password" validate:"required,min=8"`
	Phone       *string           `json:"phone,omitempty"`
	DateOfBirth *time.Time        `json:"date_of_birth,omitempty"`
	Gender      *string           `json:"gender,omitempty"`
	BloodGroup  *enums.BloodGroup `json:"blood_group,omitempty"`
	Address     *string           `json:"address,omitempty"`
}

// StaffRegisterRequest provisions doctor, receptionist, or admin accounts.
type StaffRegisterRequest struct {
	FirstName string         `json:"first_name" validate:"required"`
	LastName  string         `json:"last_name" validate:"required"`
	Email     string         `json:"email" validate:"required,email"`
	Password  string         `json:"password" validate:"required,min=8"`
	Phone     *string        `json:"phone,omitempty"`
	Role      enums.UserRole `json:"role" validate:"required"`
}
