package suggestion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shajara/internal/core/apperror"
	appctx "shajara/internal/core/context"
	"shajara/internal/core/id"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/permission"
	"shajara/internal/domain/profile"
)

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (passTx) RunWithTimeout(ctx context.Context, _ time.Duration, fn func(context.Context) error) error {
	return fn(ctx)
}

type memSuggestions struct {
	rows map[id.ID]*Suggestion
}

func (r *memSuggestions) GetByID(_ context.Context, sid id.ID) (*Suggestion, error) {
	s, ok := r.rows[sid]
	if !ok {
		return nil, apperror.NewNotFound("suggestion", sid)
	}
	cp := *s
	return &cp, nil
}

func (r *memSuggestions) GetForUpdate(ctx context.Context, sid id.ID) (*Suggestion, error) {
	return r.GetByID(ctx, sid)
}

func (r *memSuggestions) Create(_ context.Context, s *Suggestion) error {
	r.rows[s.ID] = s
	return nil
}

func (r *memSuggestions) Update(_ context.Context, sid id.ID, expectedVersion int, set map[string]any) error {
	s, ok := r.rows[sid]
	if !ok {
		return apperror.NewNotFound("suggestion", sid)
	}
	if s.Version != expectedVersion {
		return apperror.NewVersionConflict("suggestion", sid, expectedVersion, s.Version)
	}
	for col, v := range set {
		switch col {
		case "status":
			s.Status = Status(v.(string))
		case "reviewed_by":
			rid := v.(id.ID)
			s.ReviewedBy = &rid
		case "review_note":
			s.ReviewNote, _ = v.(*string)
		}
	}
	s.Version++
	return nil
}

func (r *memSuggestions) ListPendingByTarget(_ context.Context, targetID id.ID) ([]*Suggestion, error) {
	var out []*Suggestion
	for _, s := range r.rows {
		if s.TargetID == targetID && s.IsPending() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSuggestions) ListByProposer(_ context.Context, proposerID id.ID) ([]*Suggestion, error) {
	var out []*Suggestion
	for _, s := range r.rows {
		if s.ProposerID == proposerID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memProfiles struct {
	rows map[id.ID]*profile.Profile
}

func (r *memProfiles) GetByID(_ context.Context, pid id.ID) (*profile.Profile, error) {
	p, ok := r.rows[pid]
	if !ok || p.IsDeleted() {
		return nil, apperror.NewNotFound("profile", pid)
	}
	cp := *p
	return &cp, nil
}

func (r *memProfiles) GetByIDAny(ctx context.Context, pid id.ID) (*profile.Profile, error) {
	return r.GetByID(ctx, pid)
}

func (r *memProfiles) GetByAccountID(_ context.Context, accountID id.ID) (*profile.Profile, error) {
	return nil, apperror.NewNotFound("profile", accountID)
}

func (r *memProfiles) GetForUpdate(ctx context.Context, pid id.ID) (*profile.Profile, error) {
	return r.GetByID(ctx, pid)
}

func (r *memProfiles) GetForUpdateMany(_ context.Context, _ []id.ID) ([]*profile.Profile, error) {
	return nil, nil
}

func (r *memProfiles) Create(_ context.Context, p *profile.Profile) error {
	r.rows[p.ID] = p
	return nil
}

func (r *memProfiles) Update(_ context.Context, _ id.ID, _ int, _ map[string]any) error { return nil }
func (r *memProfiles) Apply(_ context.Context, _ id.ID, _ map[string]any) error        { return nil }
func (r *memProfiles) CountChildren(_ context.Context, _ id.ID) (int, error)           { return 0, nil }
func (r *memProfiles) ChildrenOf(_ context.Context, _ id.ID) ([]*profile.Profile, error) {
	return nil, nil
}

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
	return nil, apperror.NewNotFound("audit_entry", entryID)
}

func (a *memAudit) GetForUpdate(ctx context.Context, entryID id.ID) (*audit.Entry, error) {
	return a.GetByID(ctx, entryID)
}

func (a *memAudit) ListByGroup(_ context.Context, _ id.ID) ([]*audit.Entry, error) { return nil, nil }
func (a *memAudit) List(_ context.Context, _ audit.ListFilter) ([]*audit.Entry, error) {
	return nil, nil
}
func (a *memAudit) MarkUndone(_ context.Context, _, _, _ id.ID, _ *string) error { return nil }

type stubResolver struct {
	levels map[id.ID]permission.Level
}

func (r *stubResolver) Resolve(_ context.Context, actorID, _ id.ID) (permission.Level, error) {
	if lvl, ok := r.levels[actorID]; ok {
		return lvl, nil
	}
	return permission.LevelSuggest, nil
}

// recordingUpdater captures the patch the approval hands to the gateway.
type recordingUpdater struct {
	applied []profile.Patch
	fail    error
}

func (u *recordingUpdater) UpdateProfile(_ context.Context, targetID id.ID, _ int, patch profile.Patch) (*profile.Profile, error) {
	if u.fail != nil {
		return nil, u.fail
	}
	u.applied = append(u.applied, patch)
	p := profile.New("updated", profile.GenderMale)
	p.ID = targetID
	return p, nil
}

type fixture struct {
	svc         *Service
	suggestions *memSuggestions
	profiles    *memProfiles
	audit       *memAudit
	resolver    *stubResolver
	updater     *recordingUpdater
}

func newFixture() *fixture {
	suggestions := &memSuggestions{rows: map[id.ID]*Suggestion{}}
	profiles := &memProfiles{rows: map[id.ID]*profile.Profile{}}
	auditLog := &memAudit{}
	resolver := &stubResolver{levels: map[id.ID]permission.Level{}}
	updater := &recordingUpdater{}
	svc := NewService(suggestions, profiles, auditLog, resolver, updater, passTx{}, 5*time.Second)
	return &fixture{svc: svc, suggestions: suggestions, profiles: profiles, audit: auditLog, resolver: resolver, updater: updater}
}

func actorCtx(actorID id.ID) context.Context {
	return appctx.WithActor(context.Background(), &appctx.ActorContext{
		AccountID: id.New(),
		ProfileID: &actorID,
	})
}

func namePatch(name string) profile.Patch {
	raw, _ := json.Marshal(name)
	return profile.Patch{"name": raw}
}

func TestSubmit(t *testing.T) {
	f := newFixture()
	proposer := profile.New("proposer", profile.GenderMale)
	target := profile.New("target", profile.GenderFemale)
	f.profiles.rows[proposer.ID] = proposer
	f.profiles.rows[target.ID] = target

	sg, err := f.svc.Submit(actorCtx(proposer.ID), target.ID, namePatch("better name"), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sg.Status)
	assert.Equal(t, proposer.ID, sg.ProposerID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionSuggestionSubmitted, f.audit.entries[0].ActionKind)
}

func TestSubmit_DeniedForNone(t *testing.T) {
	f := newFixture()
	proposer := profile.New("proposer", profile.GenderMale)
	target := profile.New("target", profile.GenderFemale)
	f.profiles.rows[proposer.ID] = proposer
	f.profiles.rows[target.ID] = target
	f.resolver.levels[proposer.ID] = permission.LevelNone

	_, err := f.svc.Submit(actorCtx(proposer.ID), target.ID, namePatch("x"), nil)
	assert.True(t, apperror.IsPermissionDenied(err))
}

func TestApprove(t *testing.T) {
	f := newFixture()
	proposer := profile.New("proposer", profile.GenderMale)
	reviewer := profile.New("reviewer", profile.GenderMale)
	target := profile.New("target", profile.GenderFemale)
	f.profiles.rows[proposer.ID] = proposer
	f.profiles.rows[reviewer.ID] = reviewer
	f.profiles.rows[target.ID] = target
	f.resolver.levels[reviewer.ID] = permission.LevelInner

	sg, err := f.svc.Submit(actorCtx(proposer.ID), target.ID, namePatch("better name"), nil)
	require.NoError(t, err)

	updated, err := f.svc.Approve(actorCtx(reviewer.ID), sg.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, updated)

	require.Len(t, f.updater.applied, 1, "the patch lands through the gateway")
	stored := f.suggestions.rows[sg.ID]
	assert.Equal(t, StatusApproved, stored.Status)
	assert.Equal(t, reviewer.ID, *stored.ReviewedBy)

	// A second review attempt conflicts.
	_, err = f.svc.Approve(actorCtx(reviewer.ID), sg.ID, nil)
	assert.True(t, apperror.Is(err, apperror.CodeConflict))
}

func TestApprove_GatewayDenialPropagates(t *testing.T) {
	f := newFixture()
	proposer := profile.New("proposer", profile.GenderMale)
	reviewer := profile.New("reviewer", profile.GenderMale)
	target := profile.New("target", profile.GenderFemale)
	f.profiles.rows[proposer.ID] = proposer
	f.profiles.rows[reviewer.ID] = reviewer
	f.profiles.rows[target.ID] = target
	f.updater.fail = apperror.NewPermissionDenied("suggest")

	sg, err := f.svc.Submit(actorCtx(proposer.ID), target.ID, namePatch("x"), nil)
	require.NoError(t, err)

	_, err = f.svc.Approve(actorCtx(reviewer.ID), sg.ID, nil)
	assert.True(t, apperror.IsPermissionDenied(err))
	assert.Equal(t, StatusPending, f.suggestions.rows[sg.ID].Status, "denial leaves the suggestion open")
}

func TestReject(t *testing.T) {
	f := newFixture()
	proposer := profile.New("proposer", profile.GenderMale)
	reviewer := profile.New("reviewer", profile.GenderMale)
	target := profile.New("target", profile.GenderFemale)
	f.profiles.rows[proposer.ID] = proposer
	f.profiles.rows[reviewer.ID] = reviewer
	f.profiles.rows[target.ID] = target
	f.resolver.levels[reviewer.ID] = permission.LevelInner

	sg, err := f.svc.Submit(actorCtx(proposer.ID), target.ID, namePatch("x"), nil)
	require.NoError(t, err)

	note := "not accurate"
	require.NoError(t, f.svc.Reject(actorCtx(reviewer.ID), sg.ID, &note))
	stored := f.suggestions.rows[sg.ID]
	assert.Equal(t, StatusRejected, stored.Status)
	assert.Equal(t, "not accurate", *stored.ReviewNote)
	assert.Empty(t, f.updater.applied)
}

func TestReject_RequiresEditRights(t *testing.T) {
	f := newFixture()
	proposer := profile.New("proposer", profile.GenderMale)
	target := profile.New("target", profile.GenderFemale)
	f.profiles.rows[proposer.ID] = proposer
	f.profiles.rows[target.ID] = target

	sg, err := f.svc.Submit(actorCtx(proposer.ID), target.ID, namePatch("x"), nil)
	require.NoError(t, err)

	// The proposer only holds suggest level and cannot review.
	err = f.svc.Reject(actorCtx(proposer.ID), sg.ID, nil)
	assert.True(t, apperror.IsPermissionDenied(err))
}
