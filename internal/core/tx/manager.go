// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces, not on pgx; the concrete
// implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
	"time"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunWithTimeout is RunInTransaction with an explicit statement timeout.
	// Every RPC class has its own budget (reads 2s, permission checks 3s,
	// mutations 5s, undo/cascade 10s) so a runaway recursive walk cannot
	// hang a connection.
	RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error
}

// AdvisoryLocker acquires transaction-scoped logical locks keyed by an
// arbitrary string. Used where an invariant spans a set of rows (sibling
// reorder, undo of one entry, cascade-group undo) and a per-row lock is not
// enough. TryLock never blocks: contention surfaces immediately.
type AdvisoryLocker interface {
	// TryLock attempts to take the lock within the current transaction.
	// Returns false if another transaction holds it. The lock is released
	// automatically at commit/rollback.
	TryLock(ctx context.Context, key string) (bool, error)
}
