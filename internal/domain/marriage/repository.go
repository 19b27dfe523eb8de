package marriage

import (
	"context"

	"shajara/internal/core/id"
)

// Repository defines the persistence contract for marriages. Locking and
// versioning semantics match profile.Repository.
type Repository interface {
	GetByID(ctx context.Context, marriageID id.ID) (*Marriage, error)
	GetByIDAny(ctx context.Context, marriageID id.ID) (*Marriage, error)
	GetForUpdate(ctx context.Context, marriageID id.ID) (*Marriage, error)

	Create(ctx context.Context, m *Marriage) error

	// Update applies a column set under an optimistic-lock guard.
	Update(ctx context.Context, marriageID id.ID, expectedVersion int, set map[string]any) error

	// Apply writes a column set without a version guard (undo replay).
	Apply(ctx context.Context, marriageID id.ID, set map[string]any) error

	// ListByProfile lists non-deleted marriages where the profile is either
	// spouse.
	ListByProfile(ctx context.Context, profileID id.ID) ([]*Marriage, error)

	// LockByProfiles locks (NOWAIT) and returns all non-deleted marriages
	// touching any profile in the set. Used by cascade delete to sweep edges
	// together with their nodes.
	LockByProfiles(ctx context.Context, profileIDs []id.ID) ([]*Marriage, error)
}
