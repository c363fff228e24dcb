package dto

import "github.com/noah-isme/campus-voice-api/internal/models"

// RegisterRequest is the payload for creating a verified identity.
type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	FullName   string `json:"full_name" validate:"required"`
	Role       string `json:"role" validate:"omitempty,oneof=Student Staff Warden HoD Admin Principal"`
	Department string `json:"department"`
}

// LoginRequest is the payload for authenticating.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserInfo is the identity projection returned to clients.
type UserInfo struct {
	ID         string          `json:"id"`
	Email      string          `json:"email"`
	FullName   string          `json:"full_name"`
	Role       models.UserRole `json:"role"`
	Department string          `json:"department,omitempty"`
}

// AuthResponse bundles an access token with the authenticated identity.
type AuthResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expires_in"`
	User      UserInfo `json:"user"`
}
