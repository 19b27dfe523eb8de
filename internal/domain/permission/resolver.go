package permission

import (
	"context"

	"shajara/internal/core/hid"
	"shajara/internal/core/id"
	"shajara/internal/domain/profile"
)

// DefaultMaxDepth bounds ancestor/descendant walks. Twenty generations is
// far beyond any real lineage the app stores; the cap exists because cousin
// marriages make the parent graph a DAG and a runaway walk must terminate.
const DefaultMaxDepth = 20

// Resolver computes the permission level of an actor over a target by
// walking the relationship graph. Resolution is deterministic and
// side-effect-free: repeated calls with no intervening writes return the
// same level.
type Resolver struct {
	graph    GraphReader
	maxDepth int
}

// NewResolver creates a resolver over the given graph.
func NewResolver(graph GraphReader) *Resolver {
	return &Resolver{graph: graph, maxDepth: DefaultMaxDepth}
}

// NewResolverWithDepth creates a resolver with a custom depth cap.
func NewResolverWithDepth(graph GraphReader, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{graph: graph, maxDepth: maxDepth}
}

// Resolve returns the actor's permission level over the target. Checks are
// ordered short-circuit: the first matching tier wins.
func (r *Resolver) Resolve(ctx context.Context, actorID, targetID id.ID) (Level, error) {
	// 1. Explicit block beats everything, including admin role.
	blocked, err := r.graph.IsBlocked(ctx, actorID)
	if err != nil {
		return LevelNone, err
	}
	if blocked {
		return LevelBlocked, nil
	}

	actor, err := r.graph.GetProfile(ctx, actorID)
	if err != nil {
		return LevelNone, err
	}

	// 2. Admins and super-admins edit everything.
	if actor.IsAdmin() {
		return LevelAdmin, nil
	}

	target, err := r.graph.GetProfile(ctx, targetID)
	if err != nil {
		return LevelNone, err
	}

	// 3. Branch moderators edit within their assigned HID prefix.
	if actor.Role == profile.RoleModerator {
		branch, err := r.graph.ModeratorBranch(ctx, actorID)
		if err != nil {
			return LevelNone, err
		}
		if branch != "" && target.HID != nil && hid.InBranch(branch, *target.HID) {
			return LevelModerator, nil
		}
	}

	// 4. Self-edit.
	if actorID == targetID {
		return LevelInner, nil
	}

	// 5. Current spouses.
	spouses, err := r.graph.AreCurrentSpouses(ctx, actorID, targetID)
	if err != nil {
		return LevelNone, err
	}
	if spouses {
		return LevelInner, nil
	}

	// 6. Direct parent/child, either parent slot.
	if hasParent(actor, targetID) || hasParent(target, actorID) {
		return LevelInner, nil
	}

	// 7. Siblings: at least one shared parent.
	actorParents := parentSet(actor)
	targetParents := parentSet(target)
	if intersects(actorParents, targetParents) {
		return LevelInner, nil
	}

	// 8. Ancestor/descendant in either direction, beyond one hop.
	desc, err := r.isAncestorOf(ctx, targetID, actorID) // target above actor
	if err != nil {
		return LevelNone, err
	}
	if !desc {
		desc, err = r.isAncestorOf(ctx, actorID, targetID)
		if err != nil {
			return LevelNone, err
		}
	}
	if desc {
		return LevelInner, nil
	}

	// Grandparent sets for the two-hop tiers.
	actorGrand, err := r.parentsOfSet(ctx, actorParents)
	if err != nil {
		return LevelNone, err
	}
	targetGrand, err := r.parentsOfSet(ctx, targetParents)
	if err != nil {
		return LevelNone, err
	}

	// 9. Grandparent/grandchild: exact two-hop parent match.
	if targetGrand[actorID] || actorGrand[targetID] {
		return LevelSuggest, nil
	}

	// 10. Aunt/uncle or niece/nephew: one side is a sibling of the other's
	// parent, i.e. their parents intersect the other's grandparents.
	if intersects(actorParents, targetGrand) || intersects(targetParents, actorGrand) {
		return LevelSuggest, nil
	}

	// 11. First cousins: shared grandparent through two independent parent
	// chains (steps 7 and 10 already excluded the closer readings).
	if intersects(actorGrand, targetGrand) {
		return LevelSuggest, nil
	}

	// 12. Anyone in the tree may at least suggest.
	if target.InTree() {
		return LevelSuggest, nil
	}

	// 13. No relationship at all.
	return LevelNone, nil
}

// isAncestorOf reports whether ancestorID appears in the parent closure of
// startID. Level-batched BFS with a visited set: cousin marriages give some
// profiles two valid parent paths, so the closure is a DAG, never assumed a
// tree.
func (r *Resolver) isAncestorOf(ctx context.Context, ancestorID, startID id.ID) (bool, error) {
	visited := map[id.ID]bool{startID: true}
	frontier := []id.ID{startID}

	for depth := 0; depth < r.maxDepth && len(frontier) > 0; depth++ {
		parents, err := r.graph.Parents(ctx, frontier)
		if err != nil {
			return false, err
		}
		next := frontier[:0:0]
		for _, ps := range parents {
			for _, p := range ps {
				if p == ancestorID {
					return true, nil
				}
				if !visited[p] {
					visited[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return false, nil
}

// parentsOfSet fetches the union of parents of every id in the set.
func (r *Resolver) parentsOfSet(ctx context.Context, set map[id.ID]bool) (map[id.ID]bool, error) {
	if len(set) == 0 {
		return map[id.ID]bool{}, nil
	}
	ids := make([]id.ID, 0, len(set))
	for pid := range set {
		ids = append(ids, pid)
	}
	parents, err := r.graph.Parents(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[id.ID]bool)
	for _, ps := range parents {
		for _, p := range ps {
			out[p] = true
		}
	}
	return out, nil
}

func hasParent(p *profile.Profile, parentID id.ID) bool {
	return (p.FatherID != nil && *p.FatherID == parentID) ||
		(p.MotherID != nil && *p.MotherID == parentID)
}

func parentSet(p *profile.Profile) map[id.ID]bool {
	set := make(map[id.ID]bool, 2)
	if p.FatherID != nil {
		set[*p.FatherID] = true
	}
	if p.MotherID != nil {
		set[*p.MotherID] = true
	}
	return set
}

func intersects(a, b map[id.ID]bool) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}
