// Package auth provides authentication accounts and JWT issuing. An account
// is the login identity; the linked profile is the identity inside the tree.
package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"

	"shajara/internal/core/apperror"
	"shajara/internal/core/entity"
	"shajara/internal/core/id"
)

// Account is a login identity.
type Account struct {
	entity.Base

	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`

	// ProfileID links the tree profile this account acts as. Nil until the
	// account claims or is assigned a profile.
	ProfileID *id.ID `db:"profile_id" json:"profileId,omitempty"`
}

// NewAccount creates an account with a hashed password.
func NewAccount(email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return nil, apperror.NewValidation("invalid email").WithDetail("field", "email")
	}
	if err := validation.Validate(password, validation.Required, validation.Length(8, 72)); err != nil {
		return nil, apperror.NewValidation("password must be 8 to 72 characters").WithDetail("field", "password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return &Account{
		Base:         entity.NewBase(),
		Email:        email,
		PasswordHash: string(hash),
	}, nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (a *Account) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// Validate checks entity invariants.
func (a *Account) Validate(ctx context.Context) error {
	if err := validation.Validate(a.Email, validation.Required, is.Email); err != nil {
		return apperror.NewValidation("invalid email").WithDetail("field", "email")
	}
	if a.PasswordHash == "" {
		return apperror.NewValidation("password hash is required")
	}
	return nil
}

// Repository is the persistence contract for accounts.
type Repository interface {
	GetByID(ctx context.Context, accountID id.ID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, a *Account) error

	// LinkProfile attaches a tree profile to the account.
	LinkProfile(ctx context.Context, accountID, profileID id.ID, expectedVersion int) error
}
