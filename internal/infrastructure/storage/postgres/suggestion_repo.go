package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/suggestion"
)

// Compile-time check.
var _ suggestion.Repository = (*SuggestionRepo)(nil)

const suggestionsTable = "suggestions"

// SuggestionRepo is the PostgreSQL implementation of suggestion.Repository.
type SuggestionRepo struct {
	txm  *TxManager
	cols []string
}

// NewSuggestionRepo creates the repository.
func NewSuggestionRepo(txm *TxManager) *SuggestionRepo {
	return &SuggestionRepo{
		txm:  txm,
		cols: ExtractDBColumns[suggestion.Suggestion](),
	}
}

func (r *SuggestionRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *SuggestionRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(suggestionsTable)
}

func (r *SuggestionRepo) get(ctx context.Context, q squirrel.SelectBuilder, key any) (*suggestion.Suggestion, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var s suggestion.Suggestion
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("suggestion", key)
		}
		if IsLockNotAvailable(err) {
			return nil, apperror.NewLockedByOther("suggestion", key)
		}
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return &s, nil
}

// GetByID fetches one suggestion.
func (r *SuggestionRepo) GetByID(ctx context.Context, suggestionID id.ID) (*suggestion.Suggestion, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": suggestionID}).Limit(1)
	return r.get(ctx, q, suggestionID)
}

// GetForUpdate locks the row NOWAIT so two reviewers cannot decide the
// same suggestion concurrently.
func (r *SuggestionRepo) GetForUpdate(ctx context.Context, suggestionID id.ID) (*suggestion.Suggestion, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": suggestionID}).
		Suffix("FOR UPDATE NOWAIT")
	return r.get(ctx, q, suggestionID)
}

// Create inserts a new suggestion.
func (r *SuggestionRepo) Create(ctx context.Context, s *suggestion.Suggestion) error {
	data := StructToMap(s)
	q := r.builder().Insert(suggestionsTable).SetMap(data)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

// Update applies a column set under the usual optimistic-lock guard.
func (r *SuggestionRepo) Update(ctx context.Context, suggestionID id.ID, expectedVersion int, set map[string]any) error {
	q := r.builder().
		Update(suggestionsTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": suggestionID}).
		Where(squirrel.Eq{"version": expectedVersion})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update suggestion: %w", err)
	}
	if result.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, suggestionID)
		if err != nil {
			return err
		}
		return apperror.NewVersionConflict("suggestion", suggestionID, expectedVersion, current.Version)
	}
	return nil
}

// ListPendingByTarget lists open suggestions for a profile, oldest first.
func (r *SuggestionRepo) ListPendingByTarget(ctx context.Context, targetID id.ID) ([]*suggestion.Suggestion, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"target_id": targetID, "status": suggestion.StatusPending}).
		OrderBy("created_at")
	return r.selectMany(ctx, q)
}

// ListByProposer lists an actor's own suggestions, newest first.
func (r *SuggestionRepo) ListByProposer(ctx context.Context, proposerID id.ID) ([]*suggestion.Suggestion, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"proposer_id": proposerID}).
		OrderBy("created_at DESC").
		Limit(100)
	return r.selectMany(ctx, q)
}

func (r *SuggestionRepo) selectMany(ctx context.Context, q squirrel.SelectBuilder) ([]*suggestion.Suggestion, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*suggestion.Suggestion
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return rows, nil
}
