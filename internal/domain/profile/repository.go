package profile

import (
	"context"

	"shajara/internal/core/id"
)

// Repository defines the persistence contract for profiles.
// All mutating methods must run inside a transaction context; lock-taking
// reads use NOWAIT and surface contention as LOCKED_BY_OTHER instead of
// queueing.
type Repository interface {
	// GetByID retrieves a profile. Soft-deleted rows yield NOT_FOUND.
	GetByID(ctx context.Context, profileID id.ID) (*Profile, error)

	// GetByIDAny retrieves a profile regardless of soft-delete state.
	GetByIDAny(ctx context.Context, profileID id.ID) (*Profile, error)

	// GetByAccountID resolves an authentication identity to its profile.
	GetByAccountID(ctx context.Context, accountID id.ID) (*Profile, error)

	// GetForUpdate retrieves a non-deleted profile with a NOWAIT row lock.
	GetForUpdate(ctx context.Context, profileID id.ID) (*Profile, error)

	// GetForUpdateMany locks a set of rows in one statement (NOWAIT),
	// returning them ordered by id. Missing or soft-deleted ids are an error.
	GetForUpdateMany(ctx context.Context, profileIDs []id.ID) ([]*Profile, error)

	// Create inserts a new profile.
	Create(ctx context.Context, p *Profile) error

	// Update applies a column set with an optimistic-lock guard: the row's
	// live version must equal expectedVersion, and is incremented by exactly
	// 1. A mismatch yields VERSION_CONFLICT and no write.
	Update(ctx context.Context, profileID id.ID, expectedVersion int, set map[string]any) error

	// Apply writes a column set without a version guard, still incrementing
	// version by 1. Used by the undo engine to replay snapshots; the caller
	// must hold the row lock.
	Apply(ctx context.Context, profileID id.ID, set map[string]any) error

	// CountChildren counts non-deleted children (either parent slot).
	CountChildren(ctx context.Context, parentID id.ID) (int, error)

	// ChildrenOf lists non-deleted children ordered by sibling order.
	ChildrenOf(ctx context.Context, parentID id.ID) ([]*Profile, error)
}
