// Package permission derives access-control decisions from the family
// relationship graph.
package permission

// Level is the closed set of permission tiers. The resolver's branches are
// exhaustive over this enum; direct mutation requires at least LevelInner.
type Level string

const (
	// LevelBlocked: the actor is explicitly blocked; no access at all.
	LevelBlocked Level = "blocked"

	// LevelNone: no relationship to the tree; read-only public views only.
	LevelNone Level = "none"

	// LevelSuggest: extended family; may propose changes for approval but
	// never mutate directly.
	LevelSuggest Level = "suggest"

	// LevelInner: self, spouse, parent/child, sibling, ancestor/descendant;
	// direct-edit rights.
	LevelInner Level = "inner"

	// LevelModerator: assigned branch moderator; direct-edit rights within
	// the branch.
	LevelModerator Level = "moderator"

	// LevelAdmin: admins and super-admins; direct-edit rights everywhere.
	LevelAdmin Level = "admin"
)

// CanEdit reports whether the level grants direct mutation rights.
func (l Level) CanEdit() bool {
	switch l {
	case LevelInner, LevelModerator, LevelAdmin:
		return true
	}
	return false
}

// CanSuggest reports whether the level grants at least the suggestion path.
func (l Level) CanSuggest() bool {
	return l.CanEdit() || l == LevelSuggest
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelBlocked, LevelNone, LevelSuggest, LevelInner, LevelModerator, LevelAdmin:
		return true
	}
	return false
}
