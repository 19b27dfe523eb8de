package permission

import (
	"context"

	"shajara/internal/core/id"
	"shajara/internal/domain/profile"
)

// GraphReader is the read-only view of the relationship graph the resolver
// walks. Reads are unlocked and may be stale: a permission check is always
// followed by a version-gated mutation, so staleness is harmless.
type GraphReader interface {
	// GetProfile fetches a non-deleted profile; NOT_FOUND otherwise.
	GetProfile(ctx context.Context, profileID id.ID) (*profile.Profile, error)

	// Parents returns the non-deleted parent ids of each input profile, one
	// query per BFS level. Profiles without known parents map to an empty
	// slice.
	Parents(ctx context.Context, profileIDs []id.ID) (map[id.ID][]id.ID, error)

	// AreCurrentSpouses reports whether a non-deleted current marriage links
	// the two profiles in either direction.
	AreCurrentSpouses(ctx context.Context, a, b id.ID) (bool, error)

	// IsBlocked reports whether an active block record exists for the actor.
	IsBlocked(ctx context.Context, actorID id.ID) (bool, error)

	// ModeratorBranch returns the HID prefix of the actor's assigned branch,
	// or "" when the actor moderates no branch.
	ModeratorBranch(ctx context.Context, actorID id.ID) (string, error)

	// Descendants returns the ids of all non-deleted descendants of root
	// (excluding root itself), depth-capped and cycle-guarded.
	Descendants(ctx context.Context, rootID id.ID, maxDepth int) ([]id.ID, error)
}
