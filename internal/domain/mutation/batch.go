package mutation

import (
	"context"
	"time"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/profile"
	"shajara/pkg/logger"
)

// BatchOpKind discriminates batch operations.
type BatchOpKind string

const (
	BatchOpCreate BatchOpKind = "create"
	BatchOpUpdate BatchOpKind = "update"
	BatchOpDelete BatchOpKind = "delete"
)

// BatchOp is one operation inside a batch save.
type BatchOp struct {
	Kind BatchOpKind

	// Create payload.
	Profile *profile.Profile

	// Update/delete target.
	TargetID        id.ID
	ExpectedVersion int
	Patch           profile.Patch
}

// BatchResult reports what a batch wrote.
type BatchResult struct {
	GroupID id.ID   `json:"groupId"`
	Created []id.ID `json:"created"`
	Updated []id.ID `json:"updated"`
	Deleted []id.ID `json:"deleted"`
	Total   int     `json:"total"`
}

// BatchSave applies a set of profile operations atomically. The whole batch
// runs in one transaction under one operation group: any failure rolls back
// every row, and cascade undo can later revert the group as a unit. The
// optional description is stamped on every entry of the group.
func (s *Service) BatchSave(ctx context.Context, ops []BatchOp, description string) (*BatchResult, error) {
	if len(ops) == 0 {
		return nil, apperror.NewValidation("empty batch")
	}
	if len(ops) > s.limits.BatchSize {
		return nil, apperror.NewBatchLimitExceeded(s.limits.BatchSize, len(ops))
	}
	for i, op := range ops {
		if err := validateBatchOp(op); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("op_index", i)
			}
			return nil, err
		}
	}

	groupID := id.New()
	result := &BatchResult{GroupID: groupID}

	err := s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		entries := make([]*audit.Entry, 0, len(ops))
		for _, op := range ops {
			entry, err := s.applyBatchOp(ctx, op, result)
			if err != nil {
				return err
			}
			entries = append(entries, entry.WithGroup(groupID).WithDescription(description))
		}
		return s.auditLog.AppendMany(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	result.Total = len(ops)
	logger.Info(ctx, "batch save applied",
		"group_id", groupID,
		"created", len(result.Created),
		"updated", len(result.Updated),
		"deleted", len(result.Deleted))
	return result, nil
}

func validateBatchOp(op BatchOp) error {
	switch op.Kind {
	case BatchOpCreate:
		if op.Profile == nil {
			return apperror.NewValidation("create op requires a profile payload")
		}
	case BatchOpUpdate:
		if id.IsNil(op.TargetID) {
			return apperror.NewValidation("update op requires a target id")
		}
		if err := op.Patch.Validate(); err != nil {
			return err
		}
	case BatchOpDelete:
		if id.IsNil(op.TargetID) {
			return apperror.NewValidation("delete op requires a target id")
		}
	default:
		return apperror.NewValidation("unknown batch op kind").WithDetail("kind", string(op.Kind))
	}
	return nil
}

// applyBatchOp performs one op inside the batch transaction and returns its
// audit entry (group id attached by the caller). Permission checks run per
// target: a batch touching rows outside the actor's edit scope fails whole.
func (s *Service) applyBatchOp(ctx context.Context, op BatchOp, result *BatchResult) (*audit.Entry, error) {
	switch op.Kind {
	case BatchOpCreate:
		p := op.Profile
		if err := p.Validate(ctx); err != nil {
			return nil, err
		}
		anchor := id.Nil()
		if p.FatherID != nil {
			anchor = *p.FatherID
		} else if p.MotherID != nil {
			anchor = *p.MotherID
		}
		if id.IsNil(anchor) {
			return nil, apperror.NewValidation("batch create requires a parent reference")
		}
		actorID, _, err := s.authorize(ctx, anchor)
		if err != nil {
			return nil, err
		}
		if err := s.profiles.Create(ctx, p); err != nil {
			return nil, err
		}
		result.Created = append(result.Created, p.ID)
		return audit.NewEntry(actorID, audit.TargetProfile, p.ID, audit.ActionProfileCreate).
			WithSnapshots(nil, profile.Snapshot(p)), nil

	case BatchOpUpdate:
		actorID, _, err := s.authorize(ctx, op.TargetID)
		if err != nil {
			return nil, err
		}
		current, err := s.profiles.GetForUpdate(ctx, op.TargetID)
		if err != nil {
			return nil, err
		}
		if current.Version != op.ExpectedVersion {
			return nil, apperror.NewVersionConflict("profile", op.TargetID, op.ExpectedVersion, current.Version)
		}
		if err := s.checkParentRefs(ctx, op.TargetID, op.Patch); err != nil {
			return nil, err
		}
		oldSnap := profile.Snapshot(current)
		set, err := op.Patch.ColumnSet()
		if err != nil {
			return nil, err
		}
		if err := s.profiles.Update(ctx, op.TargetID, op.ExpectedVersion, set); err != nil {
			return nil, err
		}
		updated, err := s.profiles.GetByID(ctx, op.TargetID)
		if err != nil {
			return nil, err
		}
		result.Updated = append(result.Updated, op.TargetID)
		return audit.NewEntry(actorID, audit.TargetProfile, op.TargetID, audit.ActionProfileUpdate).
			WithSnapshots(oldSnap, profile.Snapshot(updated)), nil

	case BatchOpDelete:
		actorID, _, err := s.authorize(ctx, op.TargetID)
		if err != nil {
			return nil, err
		}
		current, err := s.profiles.GetForUpdate(ctx, op.TargetID)
		if err != nil {
			return nil, err
		}
		if current.Version != op.ExpectedVersion {
			return nil, apperror.NewVersionConflict("profile", op.TargetID, op.ExpectedVersion, current.Version)
		}
		children, err := s.profiles.CountChildren(ctx, op.TargetID)
		if err != nil {
			return nil, err
		}
		if children > 0 {
			return nil, apperror.NewConflict("profile has children; use cascade delete").
				WithDetail("profile_id", op.TargetID).
				WithDetail("children", children)
		}
		oldSnap := profile.Snapshot(current)
		now := time.Now().UTC()
		if err := s.profiles.Update(ctx, op.TargetID, op.ExpectedVersion, map[string]any{"deleted_at": now}); err != nil {
			return nil, err
		}
		deleted, err := s.profiles.GetByIDAny(ctx, op.TargetID)
		if err != nil {
			return nil, err
		}
		result.Deleted = append(result.Deleted, op.TargetID)
		return audit.NewEntry(actorID, audit.TargetProfile, op.TargetID, audit.ActionProfileSoftDelete).
			WithSnapshots(oldSnap, profile.Snapshot(deleted)).
			WithSeverity(audit.SeverityWarning), nil
	}
	return nil, apperror.NewValidation("unknown batch op kind")
}
