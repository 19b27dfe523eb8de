// Package marriage provides the spouse edge between two profiles.
package marriage

import (
	"context"

	"shajara/internal/core/apperror"
	"shajara/internal/core/entity"
	"shajara/internal/core/id"
)

// Status of a marriage.
type Status string

const (
	StatusCurrent Status = "current"
	StatusPast    Status = "past"
)

// Marriage is an edge between two profiles. A partial unique index keeps at
// most one non-deleted current marriage per exact (husband, wife) pair.
type Marriage struct {
	entity.Base

	HusbandID id.ID  `db:"husband_id" json:"husbandId"`
	WifeID    id.ID  `db:"wife_id" json:"wifeId"`
	Status    Status `db:"status" json:"status"`

	StartYear *int `db:"start_year" json:"startYear,omitempty"`
	EndYear   *int `db:"end_year" json:"endYear,omitempty"`
}

// New creates a current marriage between two profiles.
func New(husbandID, wifeID id.ID) *Marriage {
	return &Marriage{
		Base:      entity.NewBase(),
		HusbandID: husbandID,
		WifeID:    wifeID,
		Status:    StatusCurrent,
	}
}

// Involves reports whether the given profile is a party to this marriage.
func (m *Marriage) Involves(profileID id.ID) bool {
	return m.HusbandID == profileID || m.WifeID == profileID
}

// Validate checks entity invariants (no database access).
func (m *Marriage) Validate(ctx context.Context) error {
	if id.IsNil(m.HusbandID) || id.IsNil(m.WifeID) {
		return apperror.NewValidation("both spouses are required")
	}
	if m.HusbandID == m.WifeID {
		return apperror.NewValidation("spouses must be distinct profiles")
	}
	if !ValidStatus(m.Status) {
		return apperror.NewValidation("invalid marriage status").
			WithDetail("field", "status").
			WithDetail("value", string(m.Status))
	}
	if m.StartYear != nil && m.EndYear != nil && *m.EndYear < *m.StartYear {
		return apperror.NewValidation("marriage end year before start year").
			WithDetail("startYear", *m.StartYear).
			WithDetail("endYear", *m.EndYear)
	}
	return nil
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusCurrent, StatusPast:
		return true
	}
	return false
}
