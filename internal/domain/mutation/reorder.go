package mutation

import (
	"context"
	"fmt"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/profile"
	"shajara/pkg/logger"
)

// ReorderItem assigns a sibling position to one child. ExpectedVersion is
// the caller's optimistic-lock token for that child.
type ReorderItem struct {
	ProfileID       id.ID `json:"profileId"`
	Order           int   `json:"order"`
	ExpectedVersion int   `json:"expectedVersion"`
}

// ReorderResult reports what a reorder wrote.
type ReorderResult struct {
	GroupID      id.ID `json:"groupId"`
	UpdatedCount int   `json:"updatedCount"`
}

// ReorderChildren rewrites the sibling order of a parent's children,
// all-or-nothing. The advisory lock keyed by the parent serializes
// concurrent reorders of the same sibling set; every child is still
// version-checked against the caller's token before any row is written,
// so one stale version aborts the whole batch untouched.
func (s *Service) ReorderChildren(ctx context.Context, parentID id.ID, items []ReorderItem) (*ReorderResult, error) {
	if len(items) == 0 {
		return nil, apperror.NewValidation("empty reorder")
	}
	if len(items) > s.limits.BatchSize {
		return nil, apperror.NewBatchLimitExceeded(s.limits.BatchSize, len(items))
	}

	seenID := make(map[id.ID]bool, len(items))
	seenOrder := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Order < 0 {
			return nil, apperror.NewValidation("sibling order must not be negative").
				WithDetail("profile_id", it.ProfileID).
				WithDetail("order", it.Order)
		}
		if seenID[it.ProfileID] {
			return nil, apperror.NewValidation("duplicate profile in reorder").
				WithDetail("profile_id", it.ProfileID)
		}
		if seenOrder[it.Order] {
			return nil, apperror.NewValidation("duplicate sibling order").
				WithDetail("order", it.Order)
		}
		seenID[it.ProfileID] = true
		seenOrder[it.Order] = true
	}

	actorID, _, err := s.authorize(ctx, parentID)
	if err != nil {
		return nil, err
	}

	result := &ReorderResult{GroupID: id.New()}
	err = s.txm.RunWithTimeout(ctx, s.mutationTimeout, func(ctx context.Context) error {
		ok, err := s.locker.TryLock(ctx, reorderLockKey(parentID))
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewLockedByOther("profile", parentID)
		}

		children, err := s.profiles.ChildrenOf(ctx, parentID)
		if err != nil {
			return err
		}
		byID := make(map[id.ID]*profile.Profile, len(children))
		for _, c := range children {
			byID[c.ID] = c
		}
		// All membership and version checks pass before the first write.
		for _, it := range items {
			child := byID[it.ProfileID]
			if child == nil {
				return apperror.NewValidation("profile is not a child of this parent").
					WithDetail("profile_id", it.ProfileID).
					WithDetail("parent_id", parentID)
			}
			if child.Version != it.ExpectedVersion {
				return apperror.NewVersionConflict("profile", it.ProfileID, it.ExpectedVersion, child.Version)
			}
		}

		entries := make([]*audit.Entry, 0, len(items))
		for _, it := range items {
			child := byID[it.ProfileID]
			if child.SiblingOrder == it.Order {
				continue
			}
			oldSnap := profile.Snapshot(child)
			if err := s.profiles.Update(ctx, it.ProfileID, it.ExpectedVersion, map[string]any{"sibling_order": it.Order}); err != nil {
				return err
			}
			after, err := s.profiles.GetByID(ctx, it.ProfileID)
			if err != nil {
				return err
			}
			entries = append(entries, audit.
				NewEntry(actorID, audit.TargetProfile, it.ProfileID, audit.ActionProfileReorder).
				WithSnapshots(oldSnap, profile.Snapshot(after)).
				WithGroup(result.GroupID))
		}
		result.UpdatedCount = len(entries)
		if len(entries) == 0 {
			return nil
		}
		return s.auditLog.AppendMany(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "children reordered",
		"parent_id", parentID, "updated", result.UpdatedCount, "group_id", result.GroupID)
	return result, nil
}

func reorderLockKey(parentID id.ID) string {
	return fmt.Sprintf("reorder:%s", parentID)
}
