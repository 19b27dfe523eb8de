package dto

import (
	"shajara/internal/domain/auth"
)

// RegisterRequest for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LinkProfileRequest for POST /auth/link-profile.
type LinkProfileRequest struct {
	ProfileID string `json:"profileId" binding:"required"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	ProfileID *string `json:"profileId,omitempty"`
}

// FromAccount creates AccountResponse from auth.Account.
func FromAccount(a *auth.Account) AccountResponse {
	resp := AccountResponse{
		ID:    a.ID.String(),
		Email: a.Email,
	}
	if a.ProfileID != nil {
		s := a.ProfileID.String()
		resp.ProfileID = &s
	}
	return resp
}

// LoginResponse for POST /auth/login.
type LoginResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}
