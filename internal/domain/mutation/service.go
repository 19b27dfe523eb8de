// Package mutation is the single write path for tree data. Every direct
// mutation goes through the same gate: resolve the actor, resolve the
// permission level, lock the row, check the version, snapshot, write, audit.
// Nothing else in the codebase writes profiles or marriages.
package mutation

import (
	"context"
	"time"

	"shajara/internal/core/apperror"
	appctx "shajara/internal/core/context"
	"shajara/internal/core/id"
	"shajara/internal/core/tx"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/marriage"
	"shajara/internal/domain/permission"
	"shajara/internal/domain/profile"
	"shajara/pkg/logger"
)

// PermissionResolver is the slice of the resolver the gateway needs.
type PermissionResolver interface {
	Resolve(ctx context.Context, actorID, targetID id.ID) (permission.Level, error)
}

// Limits are the hard caps on multi-row operations.
type Limits struct {
	BatchSize      int
	MaxDescendants int
	MaxDepth       int
}

// Service is the mutation gateway.
type Service struct {
	profiles  profile.Repository
	marriages marriage.Repository
	auditLog  audit.Repository
	resolver  PermissionResolver
	graph     permission.GraphReader
	txm       tx.Manager
	locker    tx.AdvisoryLocker

	mutationTimeout time.Duration
	undoTimeout     time.Duration
	limits          Limits
}

// NewService wires the mutation gateway.
func NewService(
	profiles profile.Repository,
	marriages marriage.Repository,
	auditLog audit.Repository,
	resolver PermissionResolver,
	graph permission.GraphReader,
	txm tx.Manager,
	locker tx.AdvisoryLocker,
	mutationTimeout, undoTimeout time.Duration,
	limits Limits,
) *Service {
	if limits.BatchSize <= 0 {
		limits.BatchSize = 50
	}
	if limits.MaxDescendants <= 0 {
		limits.MaxDescendants = 100
	}
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = permission.DefaultMaxDepth
	}
	return &Service{
		profiles:        profiles,
		marriages:       marriages,
		auditLog:        auditLog,
		resolver:        resolver,
		graph:           graph,
		txm:             txm,
		locker:          locker,
		mutationTimeout: mutationTimeout,
		undoTimeout:     undoTimeout,
		limits:          limits,
	}
}

// authorize resolves the caller to an actor profile and checks edit rights
// over the target. Fails closed: no actor profile means no access at all.
func (s *Service) authorize(ctx context.Context, targetID id.ID) (id.ID, permission.Level, error) {
	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		return id.Nil(), permission.LevelNone, apperror.NewAuthenticationRequired()
	}
	level, err := s.resolver.Resolve(ctx, actorID, targetID)
	if err != nil {
		return id.Nil(), permission.LevelNone, err
	}
	if !level.CanEdit() {
		return id.Nil(), level, apperror.NewPermissionDenied(string(level))
	}
	return actorID, level, nil
}

// UpdateProfile applies a sparse patch to a profile under optimistic
// concurrency control. Returns the updated row.
func (s *Service) UpdateProfile(ctx context.Context, targetID id.ID, expectedVersion int, patch profile.Patch) (*profile.Profile, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	actorID, level, err := s.authorize(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var updated *profile.Profile
	err = s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		current, err := s.profiles.GetForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return apperror.NewVersionConflict("profile", targetID, expectedVersion, current.Version)
		}
		if err := s.checkParentRefs(ctx, targetID, patch); err != nil {
			return err
		}

		oldSnap := profile.Snapshot(current)
		set, err := patch.ColumnSet()
		if err != nil {
			return err
		}
		if err := s.profiles.Update(ctx, targetID, expectedVersion, set); err != nil {
			return err
		}
		updated, err = s.profiles.GetByID(ctx, targetID)
		if err != nil {
			return err
		}

		entry := audit.NewEntry(actorID, audit.TargetProfile, targetID, audit.ActionProfileUpdate).
			WithSnapshots(oldSnap, profile.Snapshot(updated))
		return s.auditLog.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "profile updated",
		"profile_id", targetID, "fields", patch.Fields(), "level", level)
	return updated, nil
}

// checkParentRefs verifies that parent references in the patch point at
// living profiles of the right gender, and never at the profile itself.
func (s *Service) checkParentRefs(ctx context.Context, targetID id.ID, patch profile.Patch) error {
	checks := []struct {
		field  string
		gender profile.Gender
	}{
		{"father_id", profile.GenderMale},
		{"mother_id", profile.GenderFemale},
	}
	for _, c := range checks {
		ref, ok := patch.ParentRef(c.field)
		if !ok {
			continue
		}
		if ref == targetID {
			return apperror.NewValidation("profile cannot be its own parent").WithDetail("field", c.field)
		}
		parent, err := s.profiles.GetByID(ctx, ref)
		if err != nil {
			return err
		}
		if parent.Gender != c.gender {
			return apperror.NewValidation("parent gender mismatch").
				WithDetail("field", c.field).
				WithDetail("expected", string(c.gender))
		}
	}
	return nil
}

// CreateProfile inserts a new profile. Permission is checked against the
// referenced parent; creating a parentless root requires admin rights.
func (s *Service) CreateProfile(ctx context.Context, p *profile.Profile) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	anchor := id.Nil()
	switch {
	case p.FatherID != nil:
		anchor = *p.FatherID
	case p.MotherID != nil:
		anchor = *p.MotherID
	}

	var actorID id.ID
	if id.IsNil(anchor) {
		actorID = appctx.GetActorProfileID(ctx)
		if id.IsNil(actorID) {
			return apperror.NewAuthenticationRequired()
		}
		level, err := s.resolver.Resolve(ctx, actorID, actorID)
		if err != nil {
			return err
		}
		if level != permission.LevelAdmin {
			return apperror.NewPermissionDenied(string(level))
		}
	} else {
		var err error
		actorID, _, err = s.authorize(ctx, anchor)
		if err != nil {
			return err
		}
	}

	return s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		if !id.IsNil(anchor) {
			// Parent must exist and be alive at insert time.
			if _, err := s.profiles.GetByID(ctx, anchor); err != nil {
				return err
			}
		}
		if err := s.profiles.Create(ctx, p); err != nil {
			return err
		}
		entry := audit.NewEntry(actorID, audit.TargetProfile, p.ID, audit.ActionProfileCreate).
			WithSnapshots(nil, profile.Snapshot(p))
		return s.auditLog.Append(ctx, entry)
	})
}

// SoftDeleteProfile marks a profile deleted. Profiles with living children
// cannot be deleted directly; the caller must use cascade delete.
func (s *Service) SoftDeleteProfile(ctx context.Context, targetID id.ID, expectedVersion int) error {
	actorID, _, err := s.authorize(ctx, targetID)
	if err != nil {
		return err
	}

	err = s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		current, err := s.profiles.GetForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return apperror.NewVersionConflict("profile", targetID, expectedVersion, current.Version)
		}
		children, err := s.profiles.CountChildren(ctx, targetID)
		if err != nil {
			return err
		}
		if children > 0 {
			return apperror.NewConflict("profile has children; use cascade delete").
				WithDetail("children", children)
		}

		oldSnap := profile.Snapshot(current)
		now := time.Now().UTC()
		if err := s.profiles.Update(ctx, targetID, expectedVersion, map[string]any{"deleted_at": now}); err != nil {
			return err
		}
		deleted, err := s.profiles.GetByIDAny(ctx, targetID)
		if err != nil {
			return err
		}

		entry := audit.NewEntry(actorID, audit.TargetProfile, targetID, audit.ActionProfileSoftDelete).
			WithSnapshots(oldSnap, profile.Snapshot(deleted)).
			WithSeverity(audit.SeverityWarning)
		return s.auditLog.Append(ctx, entry)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "profile soft-deleted", "profile_id", targetID)
	return nil
}

// RestoreProfile clears the soft-delete mark on a deleted profile.
func (s *Service) RestoreProfile(ctx context.Context, targetID id.ID) (*profile.Profile, error) {
	actorID, _, err := s.authorize(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var restored *profile.Profile
	err = s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		current, err := s.profiles.GetByIDAny(ctx, targetID)
		if err != nil {
			return err
		}
		if !current.IsDeleted() {
			return apperror.NewConflict("profile is not deleted")
		}

		oldSnap := profile.Snapshot(current)
		if err := s.profiles.Apply(ctx, targetID, map[string]any{"deleted_at": nil}); err != nil {
			return err
		}
		restored, err = s.profiles.GetByID(ctx, targetID)
		if err != nil {
			return err
		}

		entry := audit.NewEntry(actorID, audit.TargetProfile, targetID, audit.ActionProfileRestore).
			WithSnapshots(oldSnap, profile.Snapshot(restored))
		return s.auditLog.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// CreateMarriage links two profiles. The actor needs edit rights over at
// least one spouse.
func (s *Service) CreateMarriage(ctx context.Context, m *marriage.Marriage) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}

	actorID, err := s.authorizeEitherSpouse(ctx, m.HusbandID, m.WifeID)
	if err != nil {
		return err
	}

	return s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		husband, err := s.profiles.GetByID(ctx, m.HusbandID)
		if err != nil {
			return err
		}
		wife, err := s.profiles.GetByID(ctx, m.WifeID)
		if err != nil {
			return err
		}
		if husband.Gender != profile.GenderMale || wife.Gender != profile.GenderFemale {
			return apperror.NewValidation("spouse gender mismatch")
		}
		if err := s.marriages.Create(ctx, m); err != nil {
			return err
		}
		entry := audit.NewEntry(actorID, audit.TargetMarriage, m.ID, audit.ActionMarriageCreate).
			WithSnapshots(nil, marriage.Snapshot(m))
		return s.auditLog.Append(ctx, entry)
	})
}

// UpdateMarriage applies a sparse patch to a marriage.
func (s *Service) UpdateMarriage(ctx context.Context, marriageID id.ID, expectedVersion int, patch marriage.Patch) (*marriage.Marriage, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *marriage.Marriage
	err := s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		current, err := s.marriages.GetForUpdate(ctx, marriageID)
		if err != nil {
			return err
		}
		actorID, err := s.authorizeEitherSpouse(ctx, current.HusbandID, current.WifeID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return apperror.NewVersionConflict("marriage", marriageID, expectedVersion, current.Version)
		}

		oldSnap := marriage.Snapshot(current)
		set, err := patch.ColumnSet()
		if err != nil {
			return err
		}
		if err := s.marriages.Update(ctx, marriageID, expectedVersion, set); err != nil {
			return err
		}
		updated, err = s.marriages.GetByID(ctx, marriageID)
		if err != nil {
			return err
		}

		entry := audit.NewEntry(actorID, audit.TargetMarriage, marriageID, audit.ActionMarriageUpdate).
			WithSnapshots(oldSnap, marriage.Snapshot(updated))
		return s.auditLog.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDeleteMarriage marks a marriage deleted.
func (s *Service) SoftDeleteMarriage(ctx context.Context, marriageID id.ID, expectedVersion int) error {
	return s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		current, err := s.marriages.GetForUpdate(ctx, marriageID)
		if err != nil {
			return err
		}
		actorID, err := s.authorizeEitherSpouse(ctx, current.HusbandID, current.WifeID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return apperror.NewVersionConflict("marriage", marriageID, expectedVersion, current.Version)
		}

		oldSnap := marriage.Snapshot(current)
		now := time.Now().UTC()
		if err := s.marriages.Update(ctx, marriageID, expectedVersion, map[string]any{"deleted_at": now}); err != nil {
			return err
		}
		deleted, err := s.marriages.GetByIDAny(ctx, marriageID)
		if err != nil {
			return err
		}

		entry := audit.NewEntry(actorID, audit.TargetMarriage, marriageID, audit.ActionMarriageSoftDelete).
			WithSnapshots(oldSnap, marriage.Snapshot(deleted)).
			WithSeverity(audit.SeverityWarning)
		return s.auditLog.Append(ctx, entry)
	})
}

// authorizeEitherSpouse grants access when the actor can edit at least one
// of the two spouses.
func (s *Service) authorizeEitherSpouse(ctx context.Context, husbandID, wifeID id.ID) (id.ID, error) {
	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		return id.Nil(), apperror.NewAuthenticationRequired()
	}
	level, err := s.resolver.Resolve(ctx, actorID, husbandID)
	if err != nil {
		return id.Nil(), err
	}
	if level.CanEdit() {
		return actorID, nil
	}
	if level == permission.LevelBlocked {
		return id.Nil(), apperror.NewPermissionDenied(string(level))
	}
	level, err = s.resolver.Resolve(ctx, actorID, wifeID)
	if err != nil {
		return id.Nil(), err
	}
	if !level.CanEdit() {
		return id.Nil(), apperror.NewPermissionDenied(string(level))
	}
	return actorID, nil
}
