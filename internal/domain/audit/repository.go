package audit

import (
	"context"
	"time"

	"shajara/internal/core/id"
)

// ListFilter narrows feed queries. Zero values mean "no constraint".
type ListFilter struct {
	TargetType TargetType
	TargetID   id.ID
	ActorID    id.ID
	ActionKind string
	Severity   Severity
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// Repository is the persistence contract for the audit log. Entries are
// append-only: the only mutation ever allowed is setting the undo state,
// exactly once.
type Repository interface {
	// Append writes one entry. Must run in the same transaction as the data
	// write it records.
	Append(ctx context.Context, e *Entry) error

	// AppendMany writes a group of entries in one round trip.
	AppendMany(ctx context.Context, entries []*Entry) error

	// GetByID fetches one entry.
	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)

	// GetForUpdate fetches one entry with a NOWAIT row lock, so two
	// concurrent undos of the same entry conflict instead of queueing.
	GetForUpdate(ctx context.Context, entryID id.ID) (*Entry, error)

	// ListByGroup returns a group's entries newest-first, the order cascade
	// undo replays them in.
	ListByGroup(ctx context.Context, groupID id.ID) ([]*Entry, error)

	// List returns entries matching the filter, newest-first.
	List(ctx context.Context, f ListFilter) ([]*Entry, error)

	// MarkUndone sets the undo state of an entry, including the undoing
	// actor's optional reason. The guard is in SQL (WHERE undone_at IS
	// NULL); a second attempt affects zero rows and returns ALREADY_UNDONE.
	MarkUndone(ctx context.Context, entryID, undoneBy, undoEntryID id.ID, reason *string) error
}
