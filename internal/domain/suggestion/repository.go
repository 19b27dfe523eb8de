package suggestion

import (
	"context"

	"shajara/internal/core/id"
)

// Repository is the persistence contract for suggestions.
type Repository interface {
	GetByID(ctx context.Context, suggestionID id.ID) (*Suggestion, error)

	// GetForUpdate locks the row NOWAIT so two reviewers cannot decide the
	// same suggestion concurrently.
	GetForUpdate(ctx context.Context, suggestionID id.ID) (*Suggestion, error)

	Create(ctx context.Context, s *Suggestion) error

	// Update applies a column set under the usual optimistic-lock guard.
	Update(ctx context.Context, suggestionID id.ID, expectedVersion int, set map[string]any) error

	// ListPendingByTarget lists open suggestions for a profile, oldest first.
	ListPendingByTarget(ctx context.Context, targetID id.ID) ([]*Suggestion, error)

	// ListByProposer lists an actor's own suggestions, newest first.
	ListByProposer(ctx context.Context, proposerID id.ID) ([]*Suggestion, error)
}
