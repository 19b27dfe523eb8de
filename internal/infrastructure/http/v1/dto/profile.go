package dto

import (
	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/mutation"
	"shajara/internal/domain/profile"
)

// CreateProfileRequest for POST /profiles.
type CreateProfileRequest struct {
	Name         string  `json:"name" binding:"required"`
	Gender       string  `json:"gender" binding:"required"`
	FatherID     *string `json:"fatherId"`
	MotherID     *string `json:"motherId"`
	SiblingOrder int     `json:"siblingOrder"`
	Bio          *string `json:"bio"`
	BirthYear    *int    `json:"birthYear"`
	DeathYear    *int    `json:"deathYear"`
	Visibility   string  `json:"visibility"`
}

// ToEntity converts the request into a profile row.
func (r CreateProfileRequest) ToEntity() (*profile.Profile, error) {
	p := profile.New(r.Name, profile.Gender(r.Gender))
	p.SiblingOrder = r.SiblingOrder
	p.Bio = r.Bio
	p.BirthYear = r.BirthYear
	p.DeathYear = r.DeathYear
	if r.Visibility != "" {
		p.Visibility = profile.Visibility(r.Visibility)
	}
	if r.FatherID != nil {
		fid, err := id.Parse(*r.FatherID)
		if err != nil {
			return nil, apperror.NewValidation("invalid father id")
		}
		p.FatherID = &fid
	}
	if r.MotherID != nil {
		mid, err := id.Parse(*r.MotherID)
		if err != nil {
			return nil, apperror.NewValidation("invalid mother id")
		}
		p.MotherID = &mid
	}
	return p, nil
}

// UpdateProfileRequest for PATCH /profiles/:id. The patch carries sparse
// field semantics: absent means unchanged, explicit null clears.
type UpdateProfileRequest struct {
	Version int           `json:"version" binding:"required,min=1"`
	Patch   profile.Patch `json:"patch" binding:"required"`
}

// CascadeDeleteRequest for POST /profiles/:id/cascade-delete.
// Confirmed=false returns a dry-run preview and writes nothing.
// MaxDescendants=0 uses the configured confirmation gate (default 100).
type CascadeDeleteRequest struct {
	Version        int  `json:"version" binding:"required,min=1"`
	Confirmed      bool `json:"confirmed"`
	MaxDescendants int  `json:"maxDescendants" binding:"omitempty,min=1"`
}

// ReorderItemRequest is one child position in a reorder, with the caller's
// version token for that child.
type ReorderItemRequest struct {
	ProfileID string `json:"profileId" binding:"required"`
	Order     int    `json:"order"`
	Version   int    `json:"version" binding:"required,min=1"`
}

// ReorderRequest for PUT /profiles/:id/children/order.
type ReorderRequest struct {
	Items []ReorderItemRequest `json:"items" binding:"required"`
}

// ToItems converts the request into domain reorder items.
func (r ReorderRequest) ToItems() ([]mutation.ReorderItem, error) {
	items := make([]mutation.ReorderItem, 0, len(r.Items))
	for _, it := range r.Items {
		pid, err := id.Parse(it.ProfileID)
		if err != nil {
			return nil, apperror.NewValidation("invalid profile id in reorder").
				WithDetail("profile_id", it.ProfileID)
		}
		items = append(items, mutation.ReorderItem{ProfileID: pid, Order: it.Order, ExpectedVersion: it.Version})
	}
	return items, nil
}

// BatchOpRequest is one operation in a batch save.
type BatchOpRequest struct {
	Kind string `json:"kind" binding:"required"`

	// Create payload.
	Profile *CreateProfileRequest `json:"profile,omitempty"`

	// Update/delete target.
	TargetID string        `json:"targetId,omitempty"`
	Version  int           `json:"version,omitempty"`
	Patch    profile.Patch `json:"patch,omitempty"`
}

// BatchRequest for POST /profiles/batch. Description is optional free text
// recorded on every audit entry of the group.
type BatchRequest struct {
	Ops         []BatchOpRequest `json:"ops" binding:"required"`
	Description string           `json:"description"`
}

// ToOps converts the request into domain batch ops.
func (r BatchRequest) ToOps() ([]mutation.BatchOp, error) {
	ops := make([]mutation.BatchOp, 0, len(r.Ops))
	for i, req := range r.Ops {
		op := mutation.BatchOp{Kind: mutation.BatchOpKind(req.Kind)}
		if req.Profile != nil {
			p, err := req.Profile.ToEntity()
			if err != nil {
				return nil, err
			}
			op.Profile = p
		}
		if req.TargetID != "" {
			tid, err := id.Parse(req.TargetID)
			if err != nil {
				return nil, apperror.NewValidation("invalid target id in batch").
					WithDetail("op_index", i)
			}
			op.TargetID = tid
		}
		op.ExpectedVersion = req.Version
		op.Patch = req.Patch
		ops = append(ops, op)
	}
	return ops, nil
}
