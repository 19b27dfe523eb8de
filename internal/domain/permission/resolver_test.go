package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shajara/internal/core/id"
	"shajara/internal/domain/profile"
)

// memGraph is an in-memory GraphReader for resolver tests.
type memGraph struct {
	profiles map[id.ID]*profile.Profile
	spouses  map[[2]id.ID]bool
	blocked  map[id.ID]bool
	branches map[id.ID]string
}

func newMemGraph() *memGraph {
	return &memGraph{
		profiles: map[id.ID]*profile.Profile{},
		spouses:  map[[2]id.ID]bool{},
		blocked:  map[id.ID]bool{},
		branches: map[id.ID]string{},
	}
}

func (g *memGraph) addPerson(name, hidStr string, father, mother *id.ID) id.ID {
	p := profile.New(name, profile.GenderMale)
	if hidStr != "" {
		p.HID = &hidStr
	}
	p.FatherID = father
	p.MotherID = mother
	g.profiles[p.ID] = p
	return p.ID
}

func (g *memGraph) marry(a, b id.ID) {
	g.spouses[[2]id.ID{a, b}] = true
	g.spouses[[2]id.ID{b, a}] = true
}

func (g *memGraph) GetProfile(_ context.Context, profileID id.ID) (*profile.Profile, error) {
	return g.profiles[profileID], nil
}

func (g *memGraph) Parents(_ context.Context, ids []id.ID) (map[id.ID][]id.ID, error) {
	out := make(map[id.ID][]id.ID, len(ids))
	for _, pid := range ids {
		var ps []id.ID
		if p, ok := g.profiles[pid]; ok {
			if p.FatherID != nil {
				ps = append(ps, *p.FatherID)
			}
			if p.MotherID != nil {
				ps = append(ps, *p.MotherID)
			}
		}
		out[pid] = ps
	}
	return out, nil
}

func (g *memGraph) AreCurrentSpouses(_ context.Context, a, b id.ID) (bool, error) {
	return g.spouses[[2]id.ID{a, b}], nil
}

func (g *memGraph) IsBlocked(_ context.Context, actorID id.ID) (bool, error) {
	return g.blocked[actorID], nil
}

func (g *memGraph) ModeratorBranch(_ context.Context, actorID id.ID) (string, error) {
	return g.branches[actorID], nil
}

func (g *memGraph) Descendants(_ context.Context, _ id.ID, _ int) ([]id.ID, error) {
	return nil, nil
}

func ref(v id.ID) *id.ID { return &v }

// buildFamily wires a three-generation family:
//
//	grandpa(1) -- grandma
//	  father(1.1)      uncle(1.2)
//	    self(1.1.1)      cousin(1.2.1)
//	    sibling(1.1.2)
func buildFamily(g *memGraph) map[string]id.ID {
	ids := map[string]id.ID{}
	ids["grandpa"] = g.addPerson("grandpa", "1", nil, nil)
	ids["grandma"] = g.addPerson("grandma", "", nil, nil)
	ids["father"] = g.addPerson("father", "1.1", ref(ids["grandpa"]), ref(ids["grandma"]))
	ids["uncle"] = g.addPerson("uncle", "1.2", ref(ids["grandpa"]), ref(ids["grandma"]))
	ids["self"] = g.addPerson("self", "1.1.1", ref(ids["father"]), nil)
	ids["sibling"] = g.addPerson("sibling", "1.1.2", ref(ids["father"]), nil)
	ids["cousin"] = g.addPerson("cousin", "1.2.1", ref(ids["uncle"]), nil)
	return ids
}

func TestResolve_CoreTiers(t *testing.T) {
	g := newMemGraph()
	ids := buildFamily(g)
	stranger := g.addPerson("stranger", "", nil, nil)
	treeStranger := g.addPerson("tree stranger", "2", nil, nil)
	r := NewResolver(g)
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  id.ID
		target id.ID
		want   Level
	}{
		{"self", ids["self"], ids["self"], LevelInner},
		{"parent of target", ids["father"], ids["self"], LevelInner},
		{"child of target", ids["self"], ids["father"], LevelInner},
		{"sibling", ids["self"], ids["sibling"], LevelInner},
		{"grandchild to grandparent", ids["self"], ids["grandpa"], LevelInner},
		{"grandparent to grandchild", ids["grandpa"], ids["self"], LevelInner},
		{"nephew to uncle", ids["self"], ids["uncle"], LevelSuggest},
		{"uncle to nephew", ids["uncle"], ids["self"], LevelSuggest},
		{"first cousin", ids["self"], ids["cousin"], LevelSuggest},
		{"unrelated but in tree", stranger, treeStranger, LevelSuggest},
		{"unrelated outside tree", treeStranger, stranger, LevelNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.actor, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Symmetry(t *testing.T) {
	g := newMemGraph()
	ids := buildFamily(g)
	r := NewResolver(g)
	ctx := context.Background()

	pairs := [][2]string{
		{"self", "sibling"},
		{"self", "cousin"},
		{"self", "grandpa"},
	}
	for _, pair := range pairs {
		ab, err := r.Resolve(ctx, ids[pair[0]], ids[pair[1]])
		require.NoError(t, err)
		ba, err := r.Resolve(ctx, ids[pair[1]], ids[pair[0]])
		require.NoError(t, err)
		assert.Equal(t, ab, ba, "levels for %s<->%s must match", pair[0], pair[1])
	}
}

func TestResolve_Spouse(t *testing.T) {
	g := newMemGraph()
	ids := buildFamily(g)
	wife := g.addPerson("wife", "", nil, nil)
	g.marry(ids["self"], wife)
	r := NewResolver(g)

	got, err := r.Resolve(context.Background(), wife, ids["self"])
	require.NoError(t, err)
	assert.Equal(t, LevelInner, got)

	// A munasib spouse has no lineage link to anyone else.
	got, err = r.Resolve(context.Background(), wife, ids["sibling"])
	require.NoError(t, err)
	assert.Equal(t, LevelSuggest, got)
}

func TestResolve_BlockedBeatsEverything(t *testing.T) {
	g := newMemGraph()
	ids := buildFamily(g)
	g.profiles[ids["self"]].Role = profile.RoleAdmin
	g.blocked[ids["self"]] = true
	r := NewResolver(g)

	got, err := r.Resolve(context.Background(), ids["self"], ids["sibling"])
	require.NoError(t, err)
	assert.Equal(t, LevelBlocked, got)
}

func TestResolve_AdminAndModerator(t *testing.T) {
	g := newMemGraph()
	ids := buildFamily(g)
	admin := g.addPerson("admin", "", nil, nil)
	g.profiles[admin].Role = profile.RoleAdmin
	mod := g.addPerson("mod", "", nil, nil)
	g.profiles[mod].Role = profile.RoleModerator
	g.branches[mod] = "1.1"
	r := NewResolver(g)
	ctx := context.Background()

	got, err := r.Resolve(ctx, admin, ids["cousin"])
	require.NoError(t, err)
	assert.Equal(t, LevelAdmin, got)

	got, err = r.Resolve(ctx, mod, ids["self"])
	require.NoError(t, err)
	assert.Equal(t, LevelModerator, got, "1.1.1 is inside branch 1.1")

	got, err = r.Resolve(ctx, mod, ids["cousin"])
	require.NoError(t, err)
	assert.Equal(t, LevelSuggest, got, "1.2.1 is outside branch 1.1, falls through to tree tier")
}

// Cousin marriage gives the child two paths to the same great-grandparents.
// The walk must terminate and still find the ancestry.
func TestResolve_CousinMarriageDAG(t *testing.T) {
	g := newMemGraph()
	ids := buildFamily(g)
	child := g.addPerson("child", "1.1.1.1", ref(ids["self"]), ref(ids["cousin"]))
	r := NewResolver(g)
	ctx := context.Background()

	got, err := r.Resolve(ctx, child, ids["grandpa"])
	require.NoError(t, err)
	assert.Equal(t, LevelInner, got, "great-grandparent through both paths")

	got, err = r.Resolve(ctx, ids["grandpa"], child)
	require.NoError(t, err)
	assert.Equal(t, LevelInner, got)
}

func TestResolve_DepthCap(t *testing.T) {
	g := newMemGraph()
	root := g.addPerson("root", "1", nil, nil)
	prev := root
	for i := 0; i < 25; i++ {
		prev = g.addPerson("gen", "1.1", ref(prev), nil)
	}
	r := NewResolverWithDepth(g, 5)

	got, err := r.Resolve(context.Background(), prev, root)
	require.NoError(t, err)
	assert.Equal(t, LevelSuggest, got, "beyond the cap the walk gives up and falls to the tree tier")
}

func TestResolve_DeterministicRepeat(t *testing.T) {
	g := newMemGraph()
	ids := buildFamily(g)
	r := NewResolver(g)
	ctx := context.Background()

	first, err := r.Resolve(ctx, ids["self"], ids["cousin"])
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := r.Resolve(ctx, ids["self"], ids["cousin"])
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestLevel_Capabilities(t *testing.T) {
	assert.True(t, LevelInner.CanEdit())
	assert.True(t, LevelModerator.CanEdit())
	assert.True(t, LevelAdmin.CanEdit())
	assert.False(t, LevelSuggest.CanEdit())
	assert.True(t, LevelSuggest.CanSuggest())
	assert.False(t, LevelNone.CanSuggest())
	assert.False(t, LevelBlocked.CanSuggest())
	assert.False(t, Level("owner").Valid())
}
