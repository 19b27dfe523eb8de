package dto

import (
	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/marriage"
)

// CreateMarriageRequest for POST /marriages.
type CreateMarriageRequest struct {
	HusbandID string `json:"husbandId" binding:"required"`
	WifeID    string `json:"wifeId" binding:"required"`
	StartYear *int   `json:"startYear"`
	EndYear   *int   `json:"endYear"`
	Status    string `json:"status"`
}

// ToEntity converts the request into a marriage row.
func (r CreateMarriageRequest) ToEntity() (*marriage.Marriage, error) {
	husbandID, err := id.Parse(r.HusbandID)
	if err != nil {
		return nil, apperror.NewValidation("invalid husband id")
	}
	wifeID, err := id.Parse(r.WifeID)
	if err != nil {
		return nil, apperror.NewValidation("invalid wife id")
	}
	m := marriage.New(husbandID, wifeID)
	m.StartYear = r.StartYear
	m.EndYear = r.EndYear
	if r.Status != "" {
		m.Status = marriage.Status(r.Status)
	}
	return m, nil
}

// UpdateMarriageRequest for PATCH /marriages/:id.
type UpdateMarriageRequest struct {
	Version int            `json:"version" binding:"required,min=1"`
	Patch   marriage.Patch `json:"patch" binding:"required"`
}
