// Package profile provides the person node of the family tree.
package profile

import (
	"context"

	"shajara/internal/core/apperror"
	"shajara/internal/core/entity"
	"shajara/internal/core/hid"
	"shajara/internal/core/id"
)

// Gender of a profile.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Role controls the admin/moderation tier of a profile's linked account.
type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Visibility of a profile in shared views.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFamily  Visibility = "family"
	VisibilityPrivate Visibility = "private"
)

// Profile is a person node in the relationship graph. Father/mother edges
// form a forest with rare DAG-like fan-in from cousin marriages, so graph
// walks must never assume a pure tree.
type Profile struct {
	entity.Base

	// HID is the dot-separated lineage position. Empty for munasib profiles
	// (spouses who joined by marriage and have no lineage of their own).
	HID *string `db:"hid" json:"hid,omitempty"`

	Name   string `db:"name" json:"name"`
	Gender Gender `db:"gender" json:"gender"`

	// Generation is the depth in the tree (redundant with HID, kept for
	// cheap filtering and layout).
	Generation int `db:"generation" json:"generation"`

	// SiblingOrder is the birth order among same-parent siblings (0-based).
	SiblingOrder int `db:"sibling_order" json:"siblingOrder"`

	FatherID *id.ID `db:"father_id" json:"fatherId,omitempty"`
	MotherID *id.ID `db:"mother_id" json:"motherId,omitempty"`

	Bio        *string    `db:"bio" json:"bio,omitempty"`
	BirthYear  *int       `db:"birth_year" json:"birthYear,omitempty"`
	DeathYear  *int       `db:"death_year" json:"deathYear,omitempty"`
	Visibility Visibility `db:"visibility" json:"visibility"`

	// Role is meaningful only for profiles with a linked account.
	Role Role `db:"role" json:"role"`

	// AccountID links an authentication identity that owns this node.
	AccountID *id.ID `db:"account_id" json:"accountId,omitempty"`
}

// New creates a Profile with required fields.
func New(name string, gender Gender) *Profile {
	return &Profile{
		Base:       entity.NewBase(),
		Name:       name,
		Gender:     gender,
		Visibility: VisibilityFamily,
		Role:       RoleUser,
	}
}

// InTree reports whether the profile belongs to the lineage tree (has an HID).
func (p *Profile) InTree() bool {
	return p.HID != nil && *p.HID != ""
}

// IsAdmin reports whether the profile's role grants admin access.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}

// Validate checks entity invariants (no database access).
func (p *Profile) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if !ValidGender(p.Gender) {
		return apperror.NewValidation("invalid gender").
			WithDetail("field", "gender").
			WithDetail("value", string(p.Gender))
	}
	if !ValidVisibility(p.Visibility) {
		return apperror.NewValidation("invalid visibility").
			WithDetail("field", "visibility").
			WithDetail("value", string(p.Visibility))
	}
	if !ValidRole(p.Role) {
		return apperror.NewValidation("invalid role").
			WithDetail("field", "role").
			WithDetail("value", string(p.Role))
	}
	if p.SiblingOrder < 0 {
		return apperror.NewValidation("sibling order must not be negative").
			WithDetail("field", "siblingOrder")
	}
	if p.HID != nil && *p.HID != "" && !hid.Valid(*p.HID) {
		return apperror.NewValidation("invalid hierarchical id").
			WithDetail("field", "hid").
			WithDetail("value", *p.HID)
	}
	if p.BirthYear != nil && p.DeathYear != nil && *p.DeathYear < *p.BirthYear {
		return apperror.NewValidation("death year before birth year").
			WithDetail("birthYear", *p.BirthYear).
			WithDetail("deathYear", *p.DeathYear)
	}
	return nil
}

// ValidGender reports whether g is a known gender value.
func ValidGender(g Gender) bool {
	switch g {
	case GenderMale, GenderFemale:
		return true
	}
	return false
}

// ValidRole reports whether r is a known role value.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// ValidVisibility reports whether v is a known visibility value.
func ValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPublic, VisibilityFamily, VisibilityPrivate:
		return true
	}
	return false
}
