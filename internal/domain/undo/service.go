// Package undo compensates audited mutations by replaying their old
// snapshots. Undo never rewrites history: every undo writes its own audit
// entry and flips the original's undo state exactly once.
package undo

import (
	"context"
	"fmt"
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

// PermissionResolver is the slice of the resolver the undo engine needs.
type PermissionResolver interface {
	Resolve(ctx context.Context, actorID, targetID id.ID) (permission.Level, error)
}

// Policy holds the undo time windows.
type Policy struct {
	// AdminWindow is how far back admins and moderators may undo any entry.
	AdminWindow time.Duration
	// SelfWindow is how far back an actor may undo their own action.
	SelfWindow time.Duration
}

// Service is the undo engine.
type Service struct {
	profiles  profile.Repository
	marriages marriage.Repository
	auditLog  audit.Repository
	resolver  PermissionResolver
	txm       tx.Manager
	locker    tx.AdvisoryLocker

	policy  Policy
	timeout time.Duration
	now     func() time.Time
}

// NewService wires the undo engine.
func NewService(
	profiles profile.Repository,
	marriages marriage.Repository,
	auditLog audit.Repository,
	resolver PermissionResolver,
	txm tx.Manager,
	locker tx.AdvisoryLocker,
	policy Policy,
	timeout time.Duration,
) *Service {
	if policy.AdminWindow <= 0 {
		policy.AdminWindow = 7 * 24 * time.Hour
	}
	if policy.SelfWindow <= 0 {
		policy.SelfWindow = 30 * 24 * time.Hour
	}
	return &Service{
		profiles:  profiles,
		marriages: marriages,
		auditLog:  auditLog,
		resolver:  resolver,
		txm:       txm,
		locker:    locker,
		policy:    policy,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Check is the non-mutating answer to "can this entry be undone by me now".
type Check struct {
	EntryID id.ID  `json:"entryId"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Check reasons. Stable tokens for the client.
const (
	ReasonNotUndoable   = "kind_not_undoable"
	ReasonAlreadyUndone = "already_undone"
	ReasonWindowExpired = "window_expired"
	ReasonNotOwner      = "not_owner"
	ReasonBlocked       = "blocked"
)

// CheckPermission evaluates the undo checks without mutating anything.
func (s *Service) CheckPermission(ctx context.Context, entryID id.ID) (*Check, error) {
	entry, err := s.auditLog.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	check := &Check{EntryID: entryID}
	if reason := s.evaluate(ctx, entry); reason != "" {
		check.Reason = reason
		return check, nil
	}
	check.Allowed = true
	return check, nil
}

// evaluate runs the undo checks in order and returns the first failing
// reason, or "" when the undo is allowed.
func (s *Service) evaluate(ctx context.Context, entry *audit.Entry) string {
	if !audit.Undoable(entry.ActionKind) {
		return ReasonNotUndoable
	}
	if entry.IsUndone() {
		return ReasonAlreadyUndone
	}

	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		return ReasonNotOwner
	}
	level, err := s.resolver.Resolve(ctx, actorID, entry.TargetID)
	if err != nil {
		return ReasonNotOwner
	}
	if level == permission.LevelBlocked {
		return ReasonBlocked
	}

	age := entry.Age(s.now())

	// Owners get the long window, including admins undoing themselves.
	if actorID == entry.ActorID {
		if age <= s.policy.SelfWindow {
			return ""
		}
		return ReasonWindowExpired
	}
	// Non-owners fall back to the resolver: anyone with direct-edit rights
	// over the target (inner circle, branch moderator, admin) may undo
	// within the short window.
	switch level {
	case permission.LevelAdmin, permission.LevelModerator, permission.LevelInner:
		if age <= s.policy.AdminWindow {
			return ""
		}
		return ReasonWindowExpired
	}
	return ReasonNotOwner
}

func (s *Service) authorizeUndo(ctx context.Context, entry *audit.Entry) error {
	if id.IsNil(appctx.GetActorProfileID(ctx)) {
		return apperror.NewAuthenticationRequired()
	}
	switch reason := s.evaluate(ctx, entry); reason {
	case "":
		return nil
	case ReasonAlreadyUndone:
		return apperror.NewAlreadyUndone(entry.ID)
	case ReasonNotUndoable:
		return apperror.NewValidation("this action cannot be undone").
			WithDetail("action_kind", entry.ActionKind)
	default:
		return apperror.NewPermissionDenied("none").WithDetail("reason", reason)
	}
}

// Undo compensates a single audit entry. The original row is restored to
// its old snapshot literally: fields changed after the original action are
// clobbered back too, which is the documented contract of undo. The
// optional reason is recorded on the original entry's undo state.
func (s *Service) Undo(ctx context.Context, entryID id.ID, reason string) (*audit.Entry, error) {
	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		return nil, apperror.NewAuthenticationRequired()
	}

	var clr *audit.Entry
	err := s.txm.RunWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		// Serialize undos of the same entry.
		ok, err := s.locker.TryLock(ctx, undoLockKey(entryID))
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewLockedByOther("audit_entry", entryID)
		}

		entry, err := s.auditLog.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		// Grouped entries also contend on the group key, so a concurrent
		// cascade undo of the same group surfaces as LOCKED_BY_OTHER here.
		// Advisory locks are transaction-scoped and cascade undo runs one
		// transaction per entry, so the key is re-taken each time.
		if entry.GroupID != nil {
			ok, err := s.locker.TryLock(ctx, undoGroupLockKey(*entry.GroupID))
			if err != nil {
				return err
			}
			if !ok {
				return apperror.NewLockedByOther("operation_group", *entry.GroupID)
			}
		}
		if err := s.authorizeUndo(ctx, entry); err != nil {
			return err
		}

		clr, err = s.compensate(ctx, actorID, entry)
		if err != nil {
			return err
		}
		clr.WithDescription(reason)
		if err := s.auditLog.Append(ctx, clr); err != nil {
			return err
		}
		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		// Exactly-once: the repository guards with WHERE undone_at IS NULL.
		return s.auditLog.MarkUndone(ctx, entryID, actorID, clr.ID, reasonPtr)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "entry undone", "entry_id", entryID, "compensation_id", clr.ID)
	return clr, nil
}

// compensate replays the entry's old snapshot and returns the compensation
// entry (not yet appended).
func (s *Service) compensate(ctx context.Context, actorID id.ID, entry *audit.Entry) (*audit.Entry, error) {
	switch entry.TargetType {
	case audit.TargetProfile:
		return s.compensateProfile(ctx, actorID, entry)
	case audit.TargetMarriage:
		return s.compensateMarriage(ctx, actorID, entry)
	}
	return nil, apperror.NewValidation("unsupported undo target").
		WithDetail("target_type", string(entry.TargetType))
}

func (s *Service) compensateProfile(ctx context.Context, actorID id.ID, entry *audit.Entry) (*audit.Entry, error) {
	current, err := s.profiles.GetByIDAny(ctx, entry.TargetID)
	if err != nil {
		return nil, err
	}
	before := profile.Snapshot(current)

	switch entry.ActionKind {
	case audit.ActionProfileCreate:
		// Undoing a create soft-deletes the row. The children guard from
		// direct delete applies: a created profile that acquired children
		// cannot silently vanish.
		children, err := s.profiles.CountChildren(ctx, entry.TargetID)
		if err != nil {
			return nil, err
		}
		if children > 0 {
			return nil, apperror.NewConflict("created profile has children; undo is not possible").
				WithDetail("children", children)
		}
		if err := s.profiles.Apply(ctx, entry.TargetID, map[string]any{"deleted_at": s.now()}); err != nil {
			return nil, err
		}
		after, err := s.profiles.GetByIDAny(ctx, entry.TargetID)
		if err != nil {
			return nil, err
		}
		return audit.NewEntry(actorID, audit.TargetProfile, entry.TargetID, audit.ActionUndoCreate).
			WithSnapshots(before, profile.Snapshot(after)), nil

	case audit.ActionProfileUpdate, audit.ActionProfileSoftDelete, audit.ActionProfileCascadeDelete:
		old, err := profile.FromSnapshot(entry.OldData)
		if err != nil {
			return nil, err
		}
		if err := s.profiles.Apply(ctx, entry.TargetID, profile.RestoreSet(old)); err != nil {
			return nil, err
		}
		after, err := s.profiles.GetByIDAny(ctx, entry.TargetID)
		if err != nil {
			return nil, err
		}
		kind := audit.ActionUndoUpdate
		switch entry.ActionKind {
		case audit.ActionProfileSoftDelete:
			kind = audit.ActionUndoDelete
		case audit.ActionProfileCascadeDelete:
			kind = audit.ActionUndoCascadeDelete
		}
		return audit.NewEntry(actorID, audit.TargetProfile, entry.TargetID, kind).
			WithSnapshots(before, profile.Snapshot(after)), nil
	}
	return nil, apperror.NewValidation("this action cannot be undone").
		WithDetail("action_kind", entry.ActionKind)
}

func (s *Service) compensateMarriage(ctx context.Context, actorID id.ID, entry *audit.Entry) (*audit.Entry, error) {
	current, err := s.marriages.GetByIDAny(ctx, entry.TargetID)
	if err != nil {
		return nil, err
	}
	before := marriage.Snapshot(current)

	switch entry.ActionKind {
	case audit.ActionMarriageCreate:
		if err := s.marriages.Apply(ctx, entry.TargetID, map[string]any{"deleted_at": s.now()}); err != nil {
			return nil, err
		}
		after, err := s.marriages.GetByIDAny(ctx, entry.TargetID)
		if err != nil {
			return nil, err
		}
		return audit.NewEntry(actorID, audit.TargetMarriage, entry.TargetID, audit.ActionUndoCreate).
			WithSnapshots(before, marriage.Snapshot(after)), nil

	case audit.ActionMarriageUpdate, audit.ActionMarriageSoftDelete:
		old, err := marriage.FromSnapshot(entry.OldData)
		if err != nil {
			return nil, err
		}
		if err := s.marriages.Apply(ctx, entry.TargetID, marriage.RestoreSet(old)); err != nil {
			return nil, err
		}
		after, err := s.marriages.GetByIDAny(ctx, entry.TargetID)
		if err != nil {
			return nil, err
		}
		kind := audit.ActionUndoUpdate
		if entry.ActionKind == audit.ActionMarriageSoftDelete {
			kind = audit.ActionUndoDelete
		}
		return audit.NewEntry(actorID, audit.TargetMarriage, entry.TargetID, kind).
			WithSnapshots(before, marriage.Snapshot(after)), nil
	}
	return nil, apperror.NewValidation("this action cannot be undone").
		WithDetail("action_kind", entry.ActionKind)
}

// CascadeResult reports the outcome of a group undo.
type CascadeResult struct {
	GroupID id.ID          `json:"groupId"`
	Undone  []id.ID        `json:"undone"`
	Skipped []SkippedEntry `json:"skipped,omitempty"`
}

// SkippedEntry names one entry the cascade could not undo and why.
type SkippedEntry struct {
	EntryID id.ID  `json:"entryId"`
	Reason  string `json:"reason"`
}

// UndoCascade undoes an operation group in reverse chronological order.
// Each entry runs in its own transaction: one stuck row does not poison the
// rest, and the result reports per-entry outcomes (partial success).
func (s *Service) UndoCascade(ctx context.Context, groupID id.ID, reason string) (*CascadeResult, error) {
	if id.IsNil(appctx.GetActorProfileID(ctx)) {
		return nil, apperror.NewAuthenticationRequired()
	}

	entries, err := s.auditLog.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperror.NewNotFound("operation_group", groupID)
	}

	result := &CascadeResult{GroupID: groupID}
	for _, entry := range entries {
		if entry.IsUndone() {
			result.Skipped = append(result.Skipped, SkippedEntry{EntryID: entry.ID, Reason: ReasonAlreadyUndone})
			continue
		}
		if _, err := s.Undo(ctx, entry.ID, reason); err != nil {
			reason := err.Error()
			if appErr, ok := apperror.AsAppError(err); ok {
				reason = appErr.Code
			}
			result.Skipped = append(result.Skipped, SkippedEntry{EntryID: entry.ID, Reason: reason})
			logger.Warn(ctx, "cascade undo entry skipped", "entry_id", entry.ID, "reason", reason)
			continue
		}
		result.Undone = append(result.Undone, entry.ID)
	}

	logger.Info(ctx, "cascade undo finished",
		"group_id", groupID, "undone", len(result.Undone), "skipped", len(result.Skipped))
	return result, nil
}

func undoLockKey(entryID id.ID) string {
	return fmt.Sprintf("undo:%s", entryID)
}

func undoGroupLockKey(groupID id.ID) string {
	return fmt.Sprintf("undo:group:%s", groupID)
}
