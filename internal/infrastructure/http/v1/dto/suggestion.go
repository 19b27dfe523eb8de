package dto

import (
	"shajara/internal/domain/profile"
)

// SubmitSuggestionRequest for POST /suggestions.
type SubmitSuggestionRequest struct {
	TargetID string        `json:"targetId" binding:"required"`
	Patch    profile.Patch `json:"patch" binding:"required"`
	Note     *string       `json:"note"`
}

// ReviewSuggestionRequest for approve/reject endpoints.
type ReviewSuggestionRequest struct {
	ReviewNote *string `json:"reviewNote"`
}
