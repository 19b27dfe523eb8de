package postgres

import (
	"context"
	"hash/fnv"

	"shajara/internal/core/apperror"
	"shajara/internal/core/tx"
)

// Compile-time check that AdvisoryLocker implements the domain contract.
var _ tx.AdvisoryLocker = (*AdvisoryLocker)(nil)

// AdvisoryLocker takes transaction-scoped advisory locks. Keys are hashed
// to the bigint keyspace PostgreSQL expects; collisions only cause spurious
// contention, never missed mutual exclusion on the same key.
type AdvisoryLocker struct {
	txm *TxManager
}

// NewAdvisoryLocker creates a locker bound to the transaction manager.
func NewAdvisoryLocker(txm *TxManager) *AdvisoryLocker {
	return &AdvisoryLocker{txm: txm}
}

// TryLock attempts pg_try_advisory_xact_lock on the hashed key. Must be
// called inside a transaction: the lock releases at commit or rollback.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (bool, error) {
	if l.txm.GetTx(ctx) == nil {
		return false, apperror.NewInternal(errNoTransaction)
	}
	var acquired bool
	err := l.txm.GetQuerier(ctx).
		QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", hashLockKey(key)).
		Scan(&acquired)
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func hashLockKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

var errNoTransaction = &noTxError{}

type noTxError struct{}

func (*noTxError) Error() string {
	return "operation requires an open transaction"
}
