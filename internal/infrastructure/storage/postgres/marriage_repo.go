package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/marriage"
)

// Compile-time check.
var _ marriage.Repository = (*MarriageRepo)(nil)

const marriagesTable = "marriages"

// MarriageRepo is the PostgreSQL implementation of marriage.Repository.
type MarriageRepo struct {
	txm  *TxManager
	cols []string
}

// NewMarriageRepo creates the repository.
func NewMarriageRepo(txm *TxManager) *MarriageRepo {
	return &MarriageRepo{
		txm:  txm,
		cols: ExtractDBColumns[marriage.Marriage](),
	}
}

func (r *MarriageRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *MarriageRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(marriagesTable)
}

func (r *MarriageRepo) get(ctx context.Context, q squirrel.SelectBuilder, key any) (*marriage.Marriage, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var m marriage.Marriage
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("marriage", key)
		}
		if IsLockNotAvailable(err) {
			return nil, apperror.NewLockedByOther("marriage", key)
		}
		return nil, fmt.Errorf("get marriage: %w", err)
	}
	return &m, nil
}

// GetByID retrieves a non-deleted marriage.
func (r *MarriageRepo) GetByID(ctx context.Context, marriageID id.ID) (*marriage.Marriage, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": marriageID}).
		Where("deleted_at IS NULL").
		Limit(1)
	return r.get(ctx, q, marriageID)
}

// GetByIDAny retrieves a marriage regardless of soft-delete state.
func (r *MarriageRepo) GetByIDAny(ctx context.Context, marriageID id.ID) (*marriage.Marriage, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": marriageID}).
		Limit(1)
	return r.get(ctx, q, marriageID)
}

// GetForUpdate locks the row NOWAIT.
func (r *MarriageRepo) GetForUpdate(ctx context.Context, marriageID id.ID) (*marriage.Marriage, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": marriageID}).
		Where("deleted_at IS NULL").
		Suffix("FOR UPDATE NOWAIT")
	return r.get(ctx, q, marriageID)
}

// Create inserts a new marriage. The partial unique index on
// (husband_id, wife_id) WHERE status = 'current' AND deleted_at IS NULL
// rejects duplicate current marriages.
func (r *MarriageRepo) Create(ctx context.Context, m *marriage.Marriage) error {
	data := StructToMap(m)
	q := r.builder().Insert(marriagesTable).SetMap(data)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if IsUniqueViolation(err) {
			return apperror.NewConflict("current marriage already exists for this couple").WithCause(err)
		}
		return fmt.Errorf("insert marriage: %w", err)
	}
	return nil
}

// Update applies a column set with an optimistic-lock guard.
func (r *MarriageRepo) Update(ctx context.Context, marriageID id.ID, expectedVersion int, set map[string]any) error {
	q := r.builder().
		Update(marriagesTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": marriageID}).
		Where(squirrel.Eq{"version": expectedVersion})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update marriage: %w", err)
	}
	if result.RowsAffected() == 0 {
		current, err := r.GetByIDAny(ctx, marriageID)
		if err != nil {
			return err
		}
		return apperror.NewVersionConflict("marriage", marriageID, expectedVersion, current.Version)
	}
	return nil
}

// Apply writes a column set without a version guard.
func (r *MarriageRepo) Apply(ctx context.Context, marriageID id.ID, set map[string]any) error {
	q := r.builder().
		Update(marriagesTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": marriageID})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("apply marriage set: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("marriage", marriageID)
	}
	return nil
}

// ListByProfile lists non-deleted marriages where the profile is either
// spouse, newest first.
func (r *MarriageRepo) ListByProfile(ctx context.Context, profileID id.ID) ([]*marriage.Marriage, error) {
	q := r.baseSelect().
		Where("deleted_at IS NULL").
		Where(squirrel.Or{
			squirrel.Eq{"husband_id": profileID},
			squirrel.Eq{"wife_id": profileID},
		}).
		OrderBy("created_at DESC")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*marriage.Marriage
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list marriages: %w", err)
	}
	return rows, nil
}

// LockByProfiles locks and returns all non-deleted marriages touching any
// profile in the set. Ordered by id to keep multi-row lockers deadlock-free.
func (r *MarriageRepo) LockByProfiles(ctx context.Context, profileIDs []id.ID) ([]*marriage.Marriage, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}
	q := r.baseSelect().
		Where("deleted_at IS NULL").
		Where(squirrel.Or{
			squirrel.Eq{"husband_id": profileIDs},
			squirrel.Eq{"wife_id": profileIDs},
		}).
		OrderBy("id").
		Suffix("FOR UPDATE NOWAIT")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*marriage.Marriage
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		if IsLockNotAvailable(err) {
			return nil, apperror.NewLockedByOther("marriage", profileIDs)
		}
		return nil, fmt.Errorf("lock marriages: %w", err)
	}
	return rows, nil
}
