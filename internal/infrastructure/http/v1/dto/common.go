// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"shajara/internal/core/id"
)

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// VersionedRequest carries the expected version for delete-style operations
// that have no other payload.
type VersionedRequest struct {
	Version int `json:"version" binding:"required,min=1"`
}
