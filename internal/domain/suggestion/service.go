package suggestion

import (
	"context"
	"time"

	"shajara/internal/core/apperror"
	appctx "shajara/internal/core/context"
	"shajara/internal/core/id"
	"shajara/internal/core/tx"
	"shajara/internal/domain/audit"
	"shajara/internal/domain/permission"
	"shajara/internal/domain/profile"
	"shajara/pkg/logger"
)

// PermissionResolver is the slice of the resolver this service needs.
type PermissionResolver interface {
	Resolve(ctx context.Context, actorID, targetID id.ID) (permission.Level, error)
}

// ProfileUpdater applies an approved patch through the mutation gateway so
// the approval produces a normal, undoable profile_update entry.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, targetID id.ID, expectedVersion int, patch profile.Patch) (*profile.Profile, error)
}

// Service manages the suggestion workflow.
type Service struct {
	suggestions Repository
	profiles    profile.Repository
	auditLog    audit.Repository
	resolver    PermissionResolver
	updater     ProfileUpdater
	txm         tx.Manager

	timeout time.Duration
}

// NewService wires the suggestion workflow.
func NewService(
	suggestions Repository,
	profiles profile.Repository,
	auditLog audit.Repository,
	resolver PermissionResolver,
	updater ProfileUpdater,
	txm tx.Manager,
	timeout time.Duration,
) *Service {
	return &Service{
		suggestions: suggestions,
		profiles:    profiles,
		auditLog:    auditLog,
		resolver:    resolver,
		updater:     updater,
		txm:         txm,
		timeout:     timeout,
	}
}

// Submit files a patch proposal against a profile. Any level that can
// suggest may submit; direct editors are redirected to the direct path by
// the client, but submitting is not an error for them.
func (s *Service) Submit(ctx context.Context, targetID id.ID, patch profile.Patch, note *string) (*Suggestion, error) {
	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		return nil, apperror.NewAuthenticationRequired()
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	level, err := s.resolver.Resolve(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if !level.CanSuggest() {
		return nil, apperror.NewPermissionDenied(string(level))
	}

	sg, err := New(targetID, actorID, patch)
	if err != nil {
		return nil, err
	}
	sg.Note = note

	err = s.txm.RunWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		// Target must exist and be alive at submission time.
		if _, err := s.profiles.GetByID(ctx, targetID); err != nil {
			return err
		}
		if err := s.suggestions.Create(ctx, sg); err != nil {
			return err
		}
		entry := audit.NewEntry(actorID, audit.TargetSuggestion, sg.ID, audit.ActionSuggestionSubmitted)
		return s.auditLog.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "suggestion submitted", "suggestion_id", sg.ID, "target_id", targetID)
	return sg, nil
}

// Approve applies a pending suggestion. The reviewer needs edit rights over
// the target; the patch itself lands through the mutation gateway, so the
// data change is audited and undoable like any direct edit.
func (s *Service) Approve(ctx context.Context, suggestionID id.ID, reviewNote *string) (*profile.Profile, error) {
	reviewerID := appctx.GetActorProfileID(ctx)
	if id.IsNil(reviewerID) {
		return nil, apperror.NewAuthenticationRequired()
	}

	var updated *profile.Profile
	err := s.txm.RunWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		sg, err := s.suggestions.GetForUpdate(ctx, suggestionID)
		if err != nil {
			return err
		}
		if !sg.IsPending() {
			return apperror.NewConflict("suggestion already reviewed").
				WithDetail("status", string(sg.Status))
		}

		patch, err := sg.DecodePatch()
		if err != nil {
			return err
		}
		target, err := s.profiles.GetByID(ctx, sg.TargetID)
		if err != nil {
			return err
		}

		// Gateway enforces the reviewer's permission and writes the
		// profile_update entry.
		updated, err = s.updater.UpdateProfile(ctx, sg.TargetID, target.Version, patch)
		if err != nil {
			return err
		}

		set := map[string]any{
			"status":      string(StatusApproved),
			"reviewed_by": reviewerID,
			"review_note": reviewNote,
		}
		if err := s.suggestions.Update(ctx, suggestionID, sg.Version, set); err != nil {
			return err
		}
		entry := audit.NewEntry(reviewerID, audit.TargetSuggestion, suggestionID, audit.ActionSuggestionApproved)
		return s.auditLog.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "suggestion approved", "suggestion_id", suggestionID)
	return updated, nil
}

// Reject closes a pending suggestion without applying it.
func (s *Service) Reject(ctx context.Context, suggestionID id.ID, reviewNote *string) error {
	reviewerID := appctx.GetActorProfileID(ctx)
	if id.IsNil(reviewerID) {
		return apperror.NewAuthenticationRequired()
	}

	err := s.txm.RunWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
		sg, err := s.suggestions.GetForUpdate(ctx, suggestionID)
		if err != nil {
			return err
		}
		if !sg.IsPending() {
			return apperror.NewConflict("suggestion already reviewed").
				WithDetail("status", string(sg.Status))
		}
		level, err := s.resolver.Resolve(ctx, reviewerID, sg.TargetID)
		if err != nil {
			return err
		}
		if !level.CanEdit() {
			return apperror.NewPermissionDenied(string(level))
		}

		set := map[string]any{
			"status":      string(StatusRejected),
			"reviewed_by": reviewerID,
			"review_note": reviewNote,
		}
		if err := s.suggestions.Update(ctx, suggestionID, sg.Version, set); err != nil {
			return err
		}
		entry := audit.NewEntry(reviewerID, audit.TargetSuggestion, suggestionID, audit.ActionSuggestionRejected)
		return s.auditLog.Append(ctx, entry)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "suggestion rejected", "suggestion_id", suggestionID)
	return nil
}

// ListPendingForTarget lists open suggestions the caller is allowed to
// review or has proposed.
func (s *Service) ListPendingForTarget(ctx context.Context, targetID id.ID) ([]*Suggestion, error) {
	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		return nil, apperror.NewAuthenticationRequired()
	}
	level, err := s.resolver.Resolve(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if !level.CanSuggest() {
		return nil, apperror.NewPermissionDenied(string(level))
	}
	return s.suggestions.ListPendingByTarget(ctx, targetID)
}

// ListMine lists the caller's own suggestions.
func (s *Service) ListMine(ctx context.Context) ([]*Suggestion, error) {
	actorID := appctx.GetActorProfileID(ctx)
	if id.IsNil(actorID) {
		return nil, apperror.NewAuthenticationRequired()
	}
	return s.suggestions.ListByProposer(ctx, actorID)
}
