package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/auth"
)

// Compile-time check.
var _ auth.Repository = (*AccountRepo)(nil)

const accountsTable = "accounts"

// AccountRepo is the PostgreSQL implementation of auth.Repository.
type AccountRepo struct {
	txm  *TxManager
	cols []string
}

// NewAccountRepo creates the repository.
func NewAccountRepo(txm *TxManager) *AccountRepo {
	return &AccountRepo{
		txm:  txm,
		cols: ExtractDBColumns[auth.Account](),
	}
}

func (r *AccountRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *AccountRepo) get(ctx context.Context, q squirrel.SelectBuilder, key any) (*auth.Account, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var a auth.Account
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("account", key)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// GetByID fetches one account.
func (r *AccountRepo) GetByID(ctx context.Context, accountID id.ID) (*auth.Account, error) {
	q := r.builder().Select(r.cols...).From(accountsTable).
		Where(squirrel.Eq{"id": accountID}).
		Limit(1)
	return r.get(ctx, q, accountID)
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	q := r.builder().Select(r.cols...).From(accountsTable).
		Where(squirrel.Eq{"email": email}).
		Limit(1)
	return r.get(ctx, q, email)
}

// Create inserts a new account. Email uniqueness is a database constraint.
func (r *AccountRepo) Create(ctx context.Context, a *auth.Account) error {
	data := StructToMap(a)
	q := r.builder().Insert(accountsTable).SetMap(data)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if IsUniqueViolation(err) {
			return apperror.NewConflict("email already registered")
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// LinkProfile attaches a tree profile to the account.
func (r *AccountRepo) LinkProfile(ctx context.Context, accountID, profileID id.ID, expectedVersion int) error {
	q := r.builder().
		Update(accountsTable).
		Set("profile_id", profileID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": accountID}).
		Where(squirrel.Eq{"version": expectedVersion})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("link profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		return apperror.NewVersionConflict("account", accountID, expectedVersion, current.Version)
	}
	return nil
}
