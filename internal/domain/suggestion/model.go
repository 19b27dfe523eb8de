// Package suggestion provides the propose-and-review path for actors whose
// permission level allows suggesting but not direct edits.
package suggestion

import (
	"context"
	"encoding/json"

	"shajara/internal/core/apperror"
	"shajara/internal/core/entity"
	"shajara/internal/core/id"
	"shajara/internal/domain/profile"
)

// Status of a suggestion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Suggestion is a proposed profile patch awaiting review by someone with
// edit rights over the target.
type Suggestion struct {
	entity.Base

	TargetID   id.ID           `db:"target_id" json:"targetId"`
	ProposerID id.ID           `db:"proposer_id" json:"proposerId"`
	Patch      json.RawMessage `db:"patch" json:"patch"`
	Status     Status          `db:"status" json:"status"`
	Note       *string         `db:"note" json:"note,omitempty"`

	ReviewedBy *id.ID  `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewNote *string `db:"review_note" json:"reviewNote,omitempty"`
}

// New creates a pending suggestion.
func New(targetID, proposerID id.ID, patch profile.Patch) (*Suggestion, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, apperror.NewValidation("malformed patch")
	}
	return &Suggestion{
		Base:       entity.NewBase(),
		TargetID:   targetID,
		ProposerID: proposerID,
		Patch:      raw,
		Status:     StatusPending,
	}, nil
}

// DecodePatch returns the proposed patch.
func (s *Suggestion) DecodePatch() (profile.Patch, error) {
	var p profile.Patch
	if err := json.Unmarshal(s.Patch, &p); err != nil {
		return nil, apperror.NewValidation("malformed patch payload")
	}
	return p, nil
}

// IsPending reports whether the suggestion still awaits review.
func (s *Suggestion) IsPending() bool {
	return s.Status == StatusPending
}

// Validate checks entity invariants.
func (s *Suggestion) Validate(ctx context.Context) error {
	if id.IsNil(s.TargetID) || id.IsNil(s.ProposerID) {
		return apperror.NewValidation("target and proposer are required")
	}
	patch, err := s.DecodePatch()
	if err != nil {
		return err
	}
	return patch.Validate()
}
