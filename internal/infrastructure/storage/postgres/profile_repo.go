package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/profile"
)

// Compile-time check.
var _ profile.Repository = (*ProfileRepo)(nil)

const profilesTable = "profiles"

// ProfileRepo is the PostgreSQL implementation of profile.Repository.
type ProfileRepo struct {
	txm  *TxManager
	cols []string
}

// NewProfileRepo creates the repository.
func NewProfileRepo(txm *TxManager) *ProfileRepo {
	return &ProfileRepo{
		txm:  txm,
		cols: ExtractDBColumns[profile.Profile](),
	}
}

func (r *ProfileRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ProfileRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(profilesTable)
}

func (r *ProfileRepo) get(ctx context.Context, q squirrel.SelectBuilder, key any) (*profile.Profile, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p profile.Profile
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("profile", key)
		}
		if IsLockNotAvailable(err) {
			return nil, apperror.NewLockedByOther("profile", key)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// GetByID retrieves a non-deleted profile.
func (r *ProfileRepo) GetByID(ctx context.Context, profileID id.ID) (*profile.Profile, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": profileID}).
		Where("deleted_at IS NULL").
		Limit(1)
	return r.get(ctx, q, profileID)
}

// GetByIDAny retrieves a profile regardless of soft-delete state.
func (r *ProfileRepo) GetByIDAny(ctx context.Context, profileID id.ID) (*profile.Profile, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": profileID}).
		Limit(1)
	return r.get(ctx, q, profileID)
}

// GetByAccountID resolves an authentication account to its profile.
func (r *ProfileRepo) GetByAccountID(ctx context.Context, accountID id.ID) (*profile.Profile, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"account_id": accountID}).
		Where("deleted_at IS NULL").
		Limit(1)
	return r.get(ctx, q, accountID)
}

// GetForUpdate locks the row NOWAIT. Contention surfaces immediately as
// LOCKED_BY_OTHER instead of queueing behind the holder.
func (r *ProfileRepo) GetForUpdate(ctx context.Context, profileID id.ID) (*profile.Profile, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": profileID}).
		Where("deleted_at IS NULL").
		Suffix("FOR UPDATE NOWAIT")
	return r.get(ctx, q, profileID)
}

// GetForUpdateMany locks a set of rows in one statement, ordered by id so
// concurrent multi-row lockers cannot deadlock each other.
func (r *ProfileRepo) GetForUpdateMany(ctx context.Context, profileIDs []id.ID) ([]*profile.Profile, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}
	q := r.baseSelect().
		Where(squirrel.Eq{"id": profileIDs}).
		Where("deleted_at IS NULL").
		OrderBy("id").
		Suffix("FOR UPDATE NOWAIT")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*profile.Profile
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		if IsLockNotAvailable(err) {
			return nil, apperror.NewLockedByOther("profile", profileIDs)
		}
		return nil, fmt.Errorf("lock profiles: %w", err)
	}
	if len(rows) != len(profileIDs) {
		return nil, apperror.NewNotFound("profile", profileIDs).
			WithDetail("expected", len(profileIDs)).
			WithDetail("found", len(rows))
	}
	return rows, nil
}

// Create inserts a new profile using its "db" tags.
func (r *ProfileRepo) Create(ctx context.Context, p *profile.Profile) error {
	data := StructToMap(p)
	q := r.builder().Insert(profilesTable).SetMap(data)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if IsUniqueViolation(err) {
			return apperror.NewConflict("profile already exists").WithCause(err)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Update applies a column set with an optimistic-lock guard. Version moves
// by exactly 1; a stale expected version affects zero rows.
func (r *ProfileRepo) Update(ctx context.Context, profileID id.ID, expectedVersion int, set map[string]any) error {
	q := r.builder().
		Update(profilesTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": profileID}).
		Where(squirrel.Eq{"version": expectedVersion})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.versionConflict(ctx, profileID, expectedVersion)
	}
	return nil
}

// versionConflict distinguishes a stale version from a vanished row.
func (r *ProfileRepo) versionConflict(ctx context.Context, profileID id.ID, expectedVersion int) error {
	current, err := r.GetByIDAny(ctx, profileID)
	if err != nil {
		return err
	}
	return apperror.NewVersionConflict("profile", profileID, expectedVersion, current.Version)
}

// Apply writes a column set without a version guard, still bumping the
// version. The caller must hold the row lock.
func (r *ProfileRepo) Apply(ctx context.Context, profileID id.ID, set map[string]any) error {
	q := r.builder().
		Update(profilesTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": profileID})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("apply profile set: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("profile", profileID)
	}
	return nil
}

// CountChildren counts non-deleted children through either parent slot.
func (r *ProfileRepo) CountChildren(ctx context.Context, parentID id.ID) (int, error) {
	q := r.builder().
		Select("count(*)").
		From(profilesTable).
		Where("deleted_at IS NULL").
		Where(squirrel.Or{
			squirrel.Eq{"father_id": parentID},
			squirrel.Eq{"mother_id": parentID},
		})
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// ChildrenOf lists non-deleted children ordered by sibling order.
func (r *ProfileRepo) ChildrenOf(ctx context.Context, parentID id.ID) ([]*profile.Profile, error) {
	q := r.baseSelect().
		Where("deleted_at IS NULL").
		Where(squirrel.Or{
			squirrel.Eq{"father_id": parentID},
			squirrel.Eq{"mother_id": parentID},
		}).
		OrderBy("sibling_order", "id")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*profile.Profile
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return rows, nil
}
