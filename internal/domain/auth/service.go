package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/core/tx"
	"shajara/internal/domain/profile"
	"shajara/pkg/logger"
)

// Claims is the JWT payload. The profile id rides in the token so the
// middleware can build the actor context without a database hit; the role
// is re-read from the profile on permission-sensitive paths anyway.
type Claims struct {
	jwt.RegisteredClaims

	AccountID string `json:"aid"`
	ProfileID string `json:"pid,omitempty"`
}

// Service handles registration, login, and token verification.
type Service struct {
	accounts Repository
	profiles profile.Repository
	txm      tx.Manager

	secret   []byte
	tokenTTL time.Duration
}

// NewService wires the auth service.
func NewService(accounts Repository, profiles profile.Repository, txm tx.Manager, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		accounts: accounts,
		profiles: profiles,
		txm:      txm,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Register creates an account. Email uniqueness is enforced by the database;
// a duplicate surfaces as CONFLICT from the repository.
func (s *Service) Register(ctx context.Context, email, password string) (*Account, error) {
	account, err := NewAccount(email, password)
	if err != nil {
		return nil, err
	}
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.accounts.Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

// Login verifies credentials and returns a signed token. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			return "", nil, apperror.NewAuthenticationRequired()
		}
		return "", nil, err
	}
	if !account.CheckPassword(password) {
		return "", nil, apperror.NewAuthenticationRequired()
	}

	token, err := s.issueToken(account)
	if err != nil {
		return "", nil, apperror.NewInternal(err)
	}
	return token, account, nil
}

// LinkProfile claims a tree profile for the account. The profile must exist,
// be alive, and not already belong to another account.
func (s *Service) LinkProfile(ctx context.Context, accountID, profileID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if account.ProfileID != nil {
			return apperror.NewConflict("account already linked to a profile")
		}
		p, err := s.profiles.GetByID(ctx, profileID)
		if err != nil {
			return err
		}
		if p.AccountID != nil {
			return apperror.NewConflict("profile already claimed by another account")
		}
		if err := s.accounts.LinkProfile(ctx, accountID, profileID, account.Version); err != nil {
			return err
		}
		return s.profiles.Apply(ctx, profileID, map[string]any{"account_id": accountID})
	})
}

func (s *Service) issueToken(account *Account) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		AccountID: account.ID.String(),
	}
	if account.ProfileID != nil {
		claims.ProfileID = account.ProfileID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken parses and validates a token string.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.NewAuthenticationRequired()
	}
	return claims, nil
}
