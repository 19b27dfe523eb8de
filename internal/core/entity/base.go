// Package entity provides the base types shared by all persisted records.
package entity

import (
	"time"

	"shajara/internal/core/id"
)

// Base contains the fields every mutable row carries. Version is the sole
// concurrency-control token: it increases by exactly 1 on every successful
// mutation and is compared against the caller-supplied expected value.
type Base struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	// DeletedAt marks soft deletion. Rows are never hard-deleted by normal
	// flow; clearing this timestamp is how undo restores a row.
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBase creates a Base with generated ID and initial version.
func NewBase() Base {
	now := time.Now().UTC()
	return Base{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsDeleted reports whether the row is soft-deleted.
func (b *Base) IsDeleted() bool {
	return b.DeletedAt != nil
}

// Touch updates the UpdatedAt timestamp and increments version.
func (b *Base) Touch() {
	b.UpdatedAt = time.Now().UTC()
	b.Version++
}
