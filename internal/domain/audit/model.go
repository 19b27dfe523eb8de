// Package audit provides the append-only action log that backs both the
// activity feed and the undo engine.
package audit

import (
	"encoding/json"
	"regexp"
	"time"

	"shajara/internal/core/id"
)

// Severity classifies entries for feed filtering.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// TargetType names the entity family an entry refers to.
type TargetType string

const (
	TargetProfile    TargetType = "profile"
	TargetMarriage   TargetType = "marriage"
	TargetSuggestion TargetType = "suggestion"
)

// Action kinds. Lowercase snake tokens; the vocabulary is closed and new
// kinds must be registered here before any writer may emit them.
const (
	ActionProfileCreate        = "profile_create"
	ActionProfileUpdate        = "profile_update"
	ActionProfileSoftDelete    = "profile_soft_delete"
	ActionProfileRestore       = "profile_restore"
	ActionProfileReorder       = "profile_reorder"
	ActionProfileCascadeDelete = "profile_cascade_delete"

	ActionMarriageCreate     = "marriage_create"
	ActionMarriageUpdate     = "marriage_update"
	ActionMarriageSoftDelete = "marriage_soft_delete"

	ActionUndoCreate        = "undo_create"
	ActionUndoUpdate        = "undo_update"
	ActionUndoDelete        = "undo_delete"
	ActionUndoCascadeDelete = "undo_cascade_delete"

	ActionSuggestionSubmitted = "suggestion_submitted"
	ActionSuggestionApproved  = "suggestion_approved"
	ActionSuggestionRejected  = "suggestion_rejected"
)

var actionKindRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var knownKinds = map[string]bool{
	ActionProfileCreate:        true,
	ActionProfileUpdate:        true,
	ActionProfileSoftDelete:    true,
	ActionProfileRestore:       true,
	ActionProfileReorder:       true,
	ActionProfileCascadeDelete: true,
	ActionMarriageCreate:       true,
	ActionMarriageUpdate:       true,
	ActionMarriageSoftDelete:   true,
	ActionUndoCreate:           true,
	ActionUndoUpdate:           true,
	ActionUndoDelete:           true,
	ActionUndoCascadeDelete:    true,
	ActionSuggestionSubmitted:  true,
	ActionSuggestionApproved:   true,
	ActionSuggestionRejected:   true,
}

// undoableKinds is the whitelist of entries the undo engine accepts.
// Undo entries themselves are never undoable (no redo), and suggestion
// workflow entries are records of a decision, not of a data write.
var undoableKinds = map[string]bool{
	ActionProfileUpdate:        true,
	ActionProfileSoftDelete:    true,
	ActionProfileCreate:        true,
	ActionProfileCascadeDelete: true,
	ActionMarriageUpdate:       true,
	ActionMarriageSoftDelete:   true,
	ActionMarriageCreate:       true,
}

// KnownKind reports whether kind belongs to the registered vocabulary.
func KnownKind(kind string) bool {
	return knownKinds[kind]
}

// ValidKindFormat reports whether kind matches the token format, registered
// or not. Used to reject garbage before the vocabulary check.
func ValidKindFormat(kind string) bool {
	return actionKindRe.MatchString(kind)
}

// Undoable reports whether entries of this kind may be undone.
func Undoable(kind string) bool {
	return undoableKinds[kind]
}

// Entry is one immutable audit record. OldData is the row snapshot taken
// before the write in the same transaction; NewData is the state after.
// Creates have no OldData, deletes keep NewData as the tombstone marker.
type Entry struct {
	ID         id.ID      `db:"id" json:"id"`
	ActorID    id.ID      `db:"actor_id" json:"actorId"`
	TargetType TargetType `db:"target_type" json:"targetType"`
	TargetID   id.ID      `db:"target_id" json:"targetId"`
	ActionKind string     `db:"action_kind" json:"actionKind"`
	Severity   Severity   `db:"severity" json:"severity"`

	OldData json.RawMessage `db:"old_data" json:"oldData,omitempty"`
	NewData json.RawMessage `db:"new_data" json:"newData,omitempty"`

	// Description is optional free text supplied by the caller, shown in the
	// activity feed (batch saves carry one per group).
	Description *string `db:"description" json:"description,omitempty"`

	// GroupID ties the entries of one multi-row operation (batch, cascade,
	// reorder) together so they can be undone as a unit.
	GroupID *id.ID `db:"group_id" json:"groupId,omitempty"`

	// Undo state is set exactly once. UndoneBy records the undoing actor,
	// UndoReason their optional stated reason, UndoEntryID the compensation
	// entry written by the undo.
	UndoneAt    *time.Time `db:"undone_at" json:"undoneAt,omitempty"`
	UndoneBy    *id.ID     `db:"undone_by" json:"undoneBy,omitempty"`
	UndoReason  *string    `db:"undo_reason" json:"undoReason,omitempty"`
	UndoEntryID *id.ID     `db:"undo_entry_id" json:"undoEntryId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewEntry creates an entry with a fresh id and timestamp.
func NewEntry(actorID id.ID, targetType TargetType, targetID id.ID, kind string) *Entry {
	return &Entry{
		ID:         id.New(),
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		ActionKind: kind,
		Severity:   SeverityInfo,
		CreatedAt:  time.Now().UTC(),
	}
}

// WithSnapshots attaches the before/after row images.
func (e *Entry) WithSnapshots(old, new json.RawMessage) *Entry {
	e.OldData = old
	e.NewData = new
	return e
}

// WithGroup ties the entry to an operation group.
func (e *Entry) WithGroup(groupID id.ID) *Entry {
	e.GroupID = &groupID
	return e
}

// WithDescription attaches caller-supplied free text. Empty is a no-op.
func (e *Entry) WithDescription(desc string) *Entry {
	if desc != "" {
		e.Description = &desc
	}
	return e
}

// WithSeverity overrides the default info severity.
func (e *Entry) WithSeverity(s Severity) *Entry {
	e.Severity = s
	return e
}

// IsUndone reports whether the entry has already been compensated.
func (e *Entry) IsUndone() bool {
	return e.UndoneAt != nil
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
