package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/profile"
)

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (passTx) RunWithTimeout(ctx context.Context, _ time.Duration, fn func(context.Context) error) error {
	return fn(ctx)
}

type memAccounts struct {
	rows map[id.ID]*Account
}

func (r *memAccounts) GetByID(_ context.Context, accountID id.ID) (*Account, error) {
	a, ok := r.rows[accountID]
	if !ok {
		return nil, apperror.NewNotFound("account", accountID)
	}
	cp := *a
	return &cp, nil
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	for _, a := range r.rows {
		if a.Email == strings.ToLower(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("account", email)
}

func (r *memAccounts) Create(_ context.Context, a *Account) error {
	for _, existing := range r.rows {
		if existing.Email == a.Email {
			return apperror.NewConflict("email already registered")
		}
	}
	r.rows[a.ID] = a
	return nil
}

func (r *memAccounts) LinkProfile(_ context.Context, accountID, profileID id.ID, expectedVersion int) error {
	a, ok := r.rows[accountID]
	if !ok {
		return apperror.NewNotFound("account", accountID)
	}
	if a.Version != expectedVersion {
		return apperror.NewVersionConflict("account", accountID, expectedVersion, a.Version)
	}
	a.ProfileID = &profileID
	a.Version++
	return nil
}

type memProfiles struct {
	rows map[id.ID]*profile.Profile
}

func (r *memProfiles) GetByID(_ context.Context, pid id.ID) (*profile.Profile, error) {
	p, ok := r.rows[pid]
	if !ok || p.IsDeleted() {
		return nil, apperror.NewNotFound("profile", pid)
	}
	cp := *p
	return &cp, nil
}

func (r *memProfiles) GetByIDAny(ctx context.Context, pid id.ID) (*profile.Profile, error) {
	return r.GetByID(ctx, pid)
}

func (r *memProfiles) GetByAccountID(_ context.Context, accountID id.ID) (*profile.Profile, error) {
	return nil, apperror.NewNotFound("profile", accountID)
}

func (r *memProfiles) GetForUpdate(ctx context.Context, pid id.ID) (*profile.Profile, error) {
	return r.GetByID(ctx, pid)
}

func (r *memProfiles) GetForUpdateMany(_ context.Context, _ []id.ID) ([]*profile.Profile, error) {
	return nil, nil
}

func (r *memProfiles) Create(_ context.Context, p *profile.Profile) error {
	r.rows[p.ID] = p
	return nil
}

func (r *memProfiles) Update(_ context.Context, _ id.ID, _ int, _ map[string]any) error { return nil }

func (r *memProfiles) Apply(_ context.Context, pid id.ID, set map[string]any) error {
	p, ok := r.rows[pid]
	if !ok {
		return apperror.NewNotFound("profile", pid)
	}
	if v, ok := set["account_id"]; ok {
		aid := v.(id.ID)
		p.AccountID = &aid
	}
	p.Version++
	return nil
}

func (r *memProfiles) CountChildren(_ context.Context, _ id.ID) (int, error) { return 0, nil }
func (r *memProfiles) ChildrenOf(_ context.Context, _ id.ID) ([]*profile.Profile, error) {
	return nil, nil
}

func newService() (*Service, *memAccounts, *memProfiles) {
	accounts := &memAccounts{rows: map[id.ID]*Account{}}
	profiles := &memProfiles{rows: map[id.ID]*profile.Profile{}}
	svc := NewService(accounts, profiles, passTx{}, "test-secret", time.Hour)
	return svc, accounts, profiles
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	account, err := svc.Register(ctx, "User@Example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", account.Email, "email is normalized")
	assert.NotEqual(t, "correct horse battery", account.PasswordHash)

	token, logged, err := svc.Login(ctx, "user@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, account.ID, logged.ID)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), claims.AccountID)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, "user@example.com", "correct horse battery")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "user@example.com", "wrong password!")
	assert.True(t, apperror.Is(err, apperror.CodeAuthenticationRequired))

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse battery")
	assert.True(t, apperror.Is(err, apperror.CodeAuthenticationRequired),
		"unknown email and wrong password are indistinguishable")
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "long enough password")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = svc.Register(ctx, "user@example.com", "short")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = svc.Register(ctx, "user@example.com", "valid password 1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "user@example.com", "valid password 2")
	assert.True(t, apperror.Is(err, apperror.CodeConflict))
}

func TestVerifyToken_Tampered(t *testing.T) {
	svc, _, _ := newService()
	other := NewService(&memAccounts{rows: map[id.ID]*Account{}}, &memProfiles{rows: map[id.ID]*profile.Profile{}}, passTx{}, "other-secret", time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "user@example.com", "correct horse battery")
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "user@example.com", "correct horse battery")
	require.NoError(t, err)

	_, err = other.VerifyToken(token)
	assert.True(t, apperror.Is(err, apperror.CodeAuthenticationRequired))

	_, err = svc.VerifyToken(token + "x")
	assert.True(t, apperror.Is(err, apperror.CodeAuthenticationRequired))
}

func TestLinkProfile(t *testing.T) {
	svc, accounts, profiles := newService()
	ctx := context.Background()

	account, err := svc.Register(ctx, "user@example.com", "correct horse battery")
	require.NoError(t, err)
	p := profile.New("me", profile.GenderMale)
	profiles.rows[p.ID] = p

	require.NoError(t, svc.LinkProfile(ctx, account.ID, p.ID))
	assert.Equal(t, p.ID, *accounts.rows[account.ID].ProfileID)
	assert.Equal(t, account.ID, *profiles.rows[p.ID].AccountID)

	// Claiming twice conflicts.
	err = svc.LinkProfile(ctx, account.ID, p.ID)
	assert.True(t, apperror.Is(err, apperror.CodeConflict))
}
