package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds staff credentials.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued access token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// StaffAccount is the input for creating or resetting an admin account.
type StaffAccount struct {
	Email    string   `validate:"required,email"`
	FullName string   `validate:"required,max=120"`
	Role     UserRole `validate:"required,oneof=SUPERADMIN ADMIN COORDINATOR"`
	Password string   `validate:"required,min=10"`
}
