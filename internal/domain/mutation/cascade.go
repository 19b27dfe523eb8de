package mutation

import (
	"context"
	"fmt"
	"time"

	"shajara/internal/core/apperror"
	"shajara/internal/core/hid"
	"shajara/internal/core/id"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/marriage"
	"shajara/internal/domain/permission"
	"shajara/internal/domain/profile"
	"shajara/pkg/logger"
)

// CascadePreview describes what a cascade delete would remove. Returned
// without any writes when the caller has not confirmed yet.
type CascadePreview struct {
	RootID      id.ID   `json:"rootId"`
	Descendants []id.ID `json:"descendants"`
	Marriages   int     `json:"marriages"`
	Total       int     `json:"total"`
	Executed    bool    `json:"executed"`
	GroupID     *id.ID  `json:"groupId,omitempty"`
}

// CascadeDeleteProfile soft-deletes a profile together with all its
// descendants and the marriages touching any of them. The caller's
// expectedVersion guards the root row; maxDescendants (<=0 means the
// configured default) sizes the confirmation gate.
//
// Two-phase by design: the first call (confirmed=false) only counts and
// returns a preview; the caller re-issues with confirmed=true to execute.
// The delete set is re-discovered inside the transaction, so the preview is
// advisory, never a reservation.
func (s *Service) CascadeDeleteProfile(ctx context.Context, rootID id.ID, expectedVersion int, confirmed bool, maxDescendants int) (*CascadePreview, error) {
	actorID, level, err := s.authorize(ctx, rootID)
	if err != nil {
		return nil, err
	}
	limit := maxDescendants
	if limit <= 0 {
		limit = s.limits.MaxDescendants
	}

	preview := &CascadePreview{RootID: rootID}

	err = s.txm.RunWithTimeout(ctx, s.undoTimeout, func(ctx context.Context) error {
		// One cascade per subtree at a time.
		ok, err := s.locker.TryLock(ctx, cascadeLockKey(rootID))
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewLockedByOther("profile", rootID)
		}

		root, err := s.profiles.GetForUpdate(ctx, rootID)
		if err != nil {
			return err
		}
		if root.Version != expectedVersion {
			return apperror.NewVersionConflict("profile", rootID, expectedVersion, root.Version)
		}

		descendants, err := s.graph.Descendants(ctx, rootID, s.limits.MaxDepth)
		if err != nil {
			return err
		}
		preview.Descendants = descendants
		preview.Total = len(descendants) + 1

		// Over the gate, the subtree needs explicit confirmation; a
		// confirmed caller proceeds regardless of size.
		if preview.Total > limit && !confirmed {
			return apperror.NewBatchLimitExceeded(limit, preview.Total).
				WithDetail("operation", "cascade_delete").
				WithDetail("confirm_required", true)
		}

		allIDs := append([]id.ID{rootID}, descendants...)
		rows, err := s.profiles.GetForUpdateMany(ctx, allIDs)
		if err != nil {
			return err
		}
		if err := s.checkCascadeScope(ctx, actorID, level, rows); err != nil {
			return err
		}

		sweep, err := s.marriages.LockByProfiles(ctx, allIDs)
		if err != nil {
			return err
		}
		preview.Marriages = len(sweep)

		if !confirmed {
			// Preview only. The surrounding transaction rolls nothing back
			// because nothing was written; locks release at commit.
			return nil
		}

		groupID := id.New()
		now := time.Now().UTC()
		entries := make([]*audit.Entry, 0, len(rows)+len(sweep))

		for _, row := range rows {
			oldSnap := profile.Snapshot(row)
			if err := s.profiles.Apply(ctx, row.ID, map[string]any{"deleted_at": now}); err != nil {
				return err
			}
			after, err := s.profiles.GetByIDAny(ctx, row.ID)
			if err != nil {
				return err
			}
			entries = append(entries, audit.
				NewEntry(actorID, audit.TargetProfile, row.ID, audit.ActionProfileCascadeDelete).
				WithSnapshots(oldSnap, profile.Snapshot(after)).
				WithGroup(groupID).
				WithSeverity(audit.SeverityCritical))
		}

		for _, m := range sweep {
			oldSnap := marriage.Snapshot(m)
			if err := s.marriages.Apply(ctx, m.ID, map[string]any{"deleted_at": now}); err != nil {
				return err
			}
			after, err := s.marriages.GetByIDAny(ctx, m.ID)
			if err != nil {
				return err
			}
			entries = append(entries, audit.
				NewEntry(actorID, audit.TargetMarriage, m.ID, audit.ActionMarriageSoftDelete).
				WithSnapshots(oldSnap, marriage.Snapshot(after)).
				WithGroup(groupID).
				WithSeverity(audit.SeverityWarning))
		}

		if err := s.auditLog.AppendMany(ctx, entries); err != nil {
			return err
		}
		preview.Executed = true
		preview.GroupID = &groupID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if preview.Executed {
		logger.Warn(ctx, "cascade delete executed",
			"root_id", rootID, "profiles", preview.Total, "marriages", preview.Marriages,
			"group_id", *preview.GroupID)
	}
	return preview, nil
}

// checkCascadeScope validates the full delete set against the actor's
// scope in one pass over the already-locked rows. Admins are unrestricted,
// and an inner grant on the root covers its subtree. A moderator's grant
// is a branch prefix, and cousin-marriage fan-in can pull rows from
// outside it, so each row's HID is checked against the branch.
func (s *Service) checkCascadeScope(ctx context.Context, actorID id.ID, level permission.Level, rows []*profile.Profile) error {
	if level != permission.LevelModerator {
		return nil
	}
	branch, err := s.graph.ModeratorBranch(ctx, actorID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.HID == nil || !hid.InBranch(branch, *row.HID) {
			return apperror.NewPermissionDenied(string(level)).
				WithDetail("profile_id", row.ID).
				WithDetail("reason", "outside moderated branch")
		}
	}
	return nil
}

func cascadeLockKey(rootID id.ID) string {
	return fmt.Sprintf("cascade:%s", rootID)
}
