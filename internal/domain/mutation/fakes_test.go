package mutation

import (
	"context"
	"sort"
	"time"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/marriage"
	"shajara/internal/domain/permission"
	"shajara/internal/domain/profile"
)

// passTx runs the function directly; the fakes have no real transactions.
type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (passTx) RunWithTimeout(ctx context.Context, _ time.Duration, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeLocker struct {
	held map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (l *fakeLocker) TryLock(_ context.Context, key string) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	return true, nil
}

// memProfiles is an in-memory profile.Repository.
type memProfiles struct {
	rows   map[id.ID]*profile.Profile
	locked map[id.ID]bool
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: map[id.ID]*profile.Profile{}, locked: map[id.ID]bool{}}
}

func (r *memProfiles) add(p *profile.Profile) { r.rows[p.ID] = p }

func (r *memProfiles) GetByID(_ context.Context, profileID id.ID) (*profile.Profile, error) {
	p, ok := r.rows[profileID]
	if !ok || p.IsDeleted() {
		return nil, apperror.NewNotFound("profile", profileID)
	}
	cp := *p
	return &cp, nil
}

func (r *memProfiles) GetByIDAny(_ context.Context, profileID id.ID) (*profile.Profile, error) {
	p, ok := r.rows[profileID]
	if !ok {
		return nil, apperror.NewNotFound("profile", profileID)
	}
	cp := *p
	return &cp, nil
}

func (r *memProfiles) GetByAccountID(_ context.Context, accountID id.ID) (*profile.Profile, error) {
	for _, p := range r.rows {
		if p.AccountID != nil && *p.AccountID == accountID && !p.IsDeleted() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("profile", accountID)
}

func (r *memProfiles) GetForUpdate(ctx context.Context, profileID id.ID) (*profile.Profile, error) {
	if r.locked[profileID] {
		return nil, apperror.NewLockedByOther("profile", profileID)
	}
	return r.GetByID(ctx, profileID)
}

func (r *memProfiles) GetForUpdateMany(ctx context.Context, profileIDs []id.ID) ([]*profile.Profile, error) {
	out := make([]*profile.Profile, 0, len(profileIDs))
	for _, pid := range profileIDs {
		p, err := r.GetForUpdate(ctx, pid)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memProfiles) Create(_ context.Context, p *profile.Profile) error {
	r.rows[p.ID] = p
	return nil
}

func (r *memProfiles) Update(ctx context.Context, profileID id.ID, expectedVersion int, set map[string]any) error {
	p, ok := r.rows[profileID]
	if !ok || p.IsDeleted() {
		return apperror.NewNotFound("profile", profileID)
	}
	if p.Version != expectedVersion {
		return apperror.NewVersionConflict("profile", profileID, expectedVersion, p.Version)
	}
	return r.applySet(p, set)
}

func (r *memProfiles) Apply(_ context.Context, profileID id.ID, set map[string]any) error {
	p, ok := r.rows[profileID]
	if !ok {
		return apperror.NewNotFound("profile", profileID)
	}
	return r.applySet(p, set)
}

func (r *memProfiles) applySet(p *profile.Profile, set map[string]any) error {
	for col, v := range set {
		switch col {
		case "name":
			p.Name = v.(string)
		case "bio":
			if v == nil {
				p.Bio = nil
			} else {
				s := v.(string)
				p.Bio = &s
			}
		case "sibling_order":
			p.SiblingOrder = v.(int)
		case "father_id":
			if v == nil {
				p.FatherID = nil
			} else {
				fid := v.(id.ID)
				p.FatherID = &fid
			}
		case "mother_id":
			if v == nil {
				p.MotherID = nil
			} else {
				mid := v.(id.ID)
				p.MotherID = &mid
			}
		case "deleted_at":
			if v == nil {
				p.DeletedAt = nil
			} else {
				t := v.(time.Time)
				p.DeletedAt = &t
			}
		}
	}
	p.Version++
	return nil
}

func (r *memProfiles) CountChildren(_ context.Context, parentID id.ID) (int, error) {
	n := 0
	for _, p := range r.rows {
		if p.IsDeleted() {
			continue
		}
		if (p.FatherID != nil && *p.FatherID == parentID) || (p.MotherID != nil && *p.MotherID == parentID) {
			n++
		}
	}
	return n, nil
}

func (r *memProfiles) ChildrenOf(ctx context.Context, parentID id.ID) ([]*profile.Profile, error) {
	var out []*profile.Profile
	for _, p := range r.rows {
		if p.IsDeleted() {
			continue
		}
		if (p.FatherID != nil && *p.FatherID == parentID) || (p.MotherID != nil && *p.MotherID == parentID) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiblingOrder < out[j].SiblingOrder })
	return out, nil
}

// memMarriages is an in-memory marriage.Repository.
type memMarriages struct {
	rows map[id.ID]*marriage.Marriage
}

func newMemMarriages() *memMarriages {
	return &memMarriages{rows: map[id.ID]*marriage.Marriage{}}
}

func (r *memMarriages) GetByID(_ context.Context, marriageID id.ID) (*marriage.Marriage, error) {
	m, ok := r.rows[marriageID]
	if !ok || m.IsDeleted() {
		return nil, apperror.NewNotFound("marriage", marriageID)
	}
	cp := *m
	return &cp, nil
}

func (r *memMarriages) GetByIDAny(_ context.Context, marriageID id.ID) (*marriage.Marriage, error) {
	m, ok := r.rows[marriageID]
	if !ok {
		return nil, apperror.NewNotFound("marriage", marriageID)
	}
	cp := *m
	return &cp, nil
}

func (r *memMarriages) GetForUpdate(ctx context.Context, marriageID id.ID) (*marriage.Marriage, error) {
	return r.GetByID(ctx, marriageID)
}

func (r *memMarriages) Create(_ context.Context, m *marriage.Marriage) error {
	r.rows[m.ID] = m
	return nil
}

func (r *memMarriages) Update(_ context.Context, marriageID id.ID, expectedVersion int, set map[string]any) error {
	m, ok := r.rows[marriageID]
	if !ok || m.IsDeleted() {
		return apperror.NewNotFound("marriage", marriageID)
	}
	if m.Version != expectedVersion {
		return apperror.NewVersionConflict("marriage", marriageID, expectedVersion, m.Version)
	}
	return r.applySet(m, set)
}

func (r *memMarriages) Apply(_ context.Context, marriageID id.ID, set map[string]any) error {
	m, ok := r.rows[marriageID]
	if !ok {
		return apperror.NewNotFound("marriage", marriageID)
	}
	return r.applySet(m, set)
}

func (r *memMarriages) applySet(m *marriage.Marriage, set map[string]any) error {
	for col, v := range set {
		switch col {
		case "status":
			m.Status = marriage.Status(v.(string))
		case "deleted_at":
			if v == nil {
				m.DeletedAt = nil
			} else {
				t := v.(time.Time)
				m.DeletedAt = &t
			}
		}
	}
	m.Version++
	return nil
}

func (r *memMarriages) ListByProfile(_ context.Context, profileID id.ID) ([]*marriage.Marriage, error) {
	var out []*marriage.Marriage
	for _, m := range r.rows {
		if !m.IsDeleted() && m.Involves(profileID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMarriages) LockByProfiles(_ context.Context, profileIDs []id.ID) ([]*marriage.Marriage, error) {
	want := make(map[id.ID]bool, len(profileIDs))
	for _, pid := range profileIDs {
		want[pid] = true
	}
	var out []*marriage.Marriage
	for _, m := range r.rows {
		if !m.IsDeleted() && (want[m.HusbandID] || want[m.WifeID]) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memAudit is an in-memory audit.Repository.
type memAudit struct {
	entries []*audit.Entry
}

func (a *memAudit) Append(_ context.Context, e *audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) AppendMany(_ context.Context, es []*audit.Entry) error {
	a.entries = append(a.entries, es...)
	return nil
}

func (a *memAudit) GetByID(_ context.Context, entryID id.ID) (*audit.Entry, error) {
	for _, e := range a.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return nil, apperror.NewNotFound("audit_entry", entryID)
}

func (a *memAudit) GetForUpdate(ctx context.Context, entryID id.ID) (*audit.Entry, error) {
	return a.GetByID(ctx, entryID)
}

func (a *memAudit) ListByGroup(_ context.Context, groupID id.ID) ([]*audit.Entry, error) {
	var out []*audit.Entry
	for _, e := range a.entries {
		if e.GroupID != nil && *e.GroupID == groupID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (a *memAudit) List(_ context.Context, f audit.ListFilter) ([]*audit.Entry, error) {
	var out []*audit.Entry
	for _, e := range a.entries {
		if f.TargetType != "" && e.TargetType != f.TargetType {
			continue
		}
		if !id.IsNil(f.TargetID) && e.TargetID != f.TargetID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (a *memAudit) MarkUndone(_ context.Context, entryID, undoneBy, undoEntryID id.ID, reason *string) error {
	for _, e := range a.entries {
		if e.ID == entryID {
			if e.UndoneAt != nil {
				return apperror.NewAlreadyUndone(entryID)
			}
			now := time.Now().UTC()
			e.UndoneAt = &now
			e.UndoneBy = &undoneBy
			e.UndoReason = reason
			e.UndoEntryID = &undoEntryID
			return nil
		}
	}
	return apperror.NewNotFound("audit_entry", entryID)
}

// stubResolver returns a fixed level per actor, defaulting to inner.
type stubResolver struct {
	levels map[id.ID]permission.Level
}

func (r *stubResolver) Resolve(_ context.Context, actorID, _ id.ID) (permission.Level, error) {
	if lvl, ok := r.levels[actorID]; ok {
		return lvl, nil
	}
	return permission.LevelInner, nil
}

// stubGraph serves Descendants from the profile fake's parent edges.
// branches maps moderator actors to their branch prefix.
type stubGraph struct {
	profiles *memProfiles
	branches map[id.ID]string
}

func (g *stubGraph) GetProfile(ctx context.Context, profileID id.ID) (*profile.Profile, error) {
	return g.profiles.GetByID(ctx, profileID)
}

func (g *stubGraph) Parents(_ context.Context, _ []id.ID) (map[id.ID][]id.ID, error) {
	return nil, nil
}

func (g *stubGraph) AreCurrentSpouses(_ context.Context, _, _ id.ID) (bool, error) {
	return false, nil
}

func (g *stubGraph) IsBlocked(_ context.Context, _ id.ID) (bool, error) { return false, nil }

func (g *stubGraph) ModeratorBranch(_ context.Context, actorID id.ID) (string, error) {
	return g.branches[actorID], nil
}

func (g *stubGraph) Descendants(ctx context.Context, rootID id.ID, maxDepth int) ([]id.ID, error) {
	var out []id.ID
	frontier := []id.ID{rootID}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []id.ID
		for _, pid := range frontier {
			children, err := g.profiles.ChildrenOf(ctx, pid)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				next = append(next, c.ID)
			}
		}
		out = append(out, next...)
		frontier = next
	}
	return out, nil
}
