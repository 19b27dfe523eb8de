package postgres

import (
	"context"
	"fmt"

	"shajara/internal/core/id"
	"shajara/internal/domain/permission"
	"shajara/internal/domain/profile"
)

// Compile-time check.
var _ permission.GraphReader = (*GraphRepo)(nil)

// GraphRepo serves the read-only graph queries the permission resolver and
// cascade discovery walk. All reads are lock-free; a permission check is
// always followed by a version-gated mutation, so stale reads are harmless.
type GraphRepo struct {
	txm      *TxManager
	profiles *ProfileRepo
}

// NewGraphRepo creates the repository.
func NewGraphRepo(txm *TxManager, profiles *ProfileRepo) *GraphRepo {
	return &GraphRepo{txm: txm, profiles: profiles}
}

// GetProfile fetches a non-deleted profile.
func (r *GraphRepo) GetProfile(ctx context.Context, profileID id.ID) (*profile.Profile, error) {
	return r.profiles.GetByID(ctx, profileID)
}

// Parents returns the non-deleted parent ids of each input profile in one
// query. One round trip per BFS level, not per node.
func (r *GraphRepo) Parents(ctx context.Context, profileIDs []id.ID) (map[id.ID][]id.ID, error) {
	out := make(map[id.ID][]id.ID, len(profileIDs))
	if len(profileIDs) == 0 {
		return out, nil
	}
	for _, pid := range profileIDs {
		out[pid] = nil
	}

	// A parent edge counts only if the parent row itself is alive.
	sql := `
		SELECT c.id,
		       f.id AS father_id,
		       m.id AS mother_id
		FROM profiles c
		LEFT JOIN profiles f ON f.id = c.father_id AND f.deleted_at IS NULL
		LEFT JOIN profiles m ON m.id = c.mother_id AND m.deleted_at IS NULL
		WHERE c.id = ANY($1)
	`
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("query parents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var child id.ID
		var father, mother *id.ID
		if err := rows.Scan(&child, &father, &mother); err != nil {
			return nil, fmt.Errorf("scan parents: %w", err)
		}
		var ps []id.ID
		if father != nil {
			ps = append(ps, *father)
		}
		if mother != nil {
			ps = append(ps, *mother)
		}
		out[child] = ps
	}
	return out, rows.Err()
}

// AreCurrentSpouses reports whether a non-deleted current marriage links
// the two profiles in either direction.
func (r *GraphRepo) AreCurrentSpouses(ctx context.Context, a, b id.ID) (bool, error) {
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM marriages
			WHERE deleted_at IS NULL
			  AND status = 'current'
			  AND ((husband_id = $1 AND wife_id = $2)
			    OR (husband_id = $2 AND wife_id = $1))
		)
	`
	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("query spouses: %w", err)
	}
	return exists, nil
}

// IsBlocked reports whether an active block record exists for the actor.
func (r *GraphRepo) IsBlocked(ctx context.Context, actorID id.ID) (bool, error) {
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM blocks
			WHERE profile_id = $1 AND lifted_at IS NULL
		)
	`
	var blocked bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, actorID).Scan(&blocked); err != nil {
		return false, fmt.Errorf("query block: %w", err)
	}
	return blocked, nil
}

// ModeratorBranch returns the HID prefix of the actor's assigned branch,
// or "" when the actor moderates no branch.
func (r *GraphRepo) ModeratorBranch(ctx context.Context, actorID id.ID) (string, error) {
	sql := `
		SELECT branch_hid FROM moderator_branches
		WHERE profile_id = $1 AND revoked_at IS NULL
		LIMIT 1
	`
	var branch string
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, actorID).Scan(&branch)
	if err != nil {
		if pgxNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("query moderator branch: %w", err)
	}
	return branch, nil
}

// Descendants returns all non-deleted descendants of root (excluding root)
// via a recursive CTE. The path array guards against the DAG-like fan-in of
// cousin marriages: a node already on the path is never re-expanded.
func (r *GraphRepo) Descendants(ctx context.Context, rootID id.ID, maxDepth int) ([]id.ID, error) {
	sql := `
		WITH RECURSIVE descendants AS (
			SELECT p.id, 1 AS depth, ARRAY[p.id] AS path
			FROM profiles p
			WHERE p.deleted_at IS NULL
			  AND (p.father_id = $1 OR p.mother_id = $1)
			UNION ALL
			SELECT p.id, d.depth + 1, d.path || p.id
			FROM profiles p
			JOIN descendants d ON p.father_id = d.id OR p.mother_id = d.id
			WHERE p.deleted_at IS NULL
			  AND d.depth < $2
			  AND NOT p.id = ANY(d.path)
		)
		SELECT DISTINCT id FROM descendants
	`
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, rootID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("query descendants: %w", err)
	}
	defer rows.Close()

	var out []id.ID
	for rows.Next() {
		var pid id.ID
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("scan descendant: %w", err)
		}
		out = append(out, pid)
	}
	return out, rows.Err()
}
