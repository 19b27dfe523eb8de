package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories translate into app errors.
const (
	sqlstateLockNotAvailable = "55P03" // FOR UPDATE NOWAIT on a held lock
	sqlstateQueryCanceled    = "57014" // statement_timeout fired
	sqlstateUniqueViolation  = "23505"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsLockNotAvailable reports whether the error is a failed NOWAIT lock.
func IsLockNotAvailable(err error) bool {
	return pgErrCode(err) == sqlstateLockNotAvailable
}

// IsQueryCanceled reports whether the error is a fired statement timeout.
func IsQueryCanceled(err error) bool {
	return pgErrCode(err) == sqlstateQueryCanceled
}

// IsUniqueViolation reports whether the error is a unique-constraint hit.
func IsUniqueViolation(err error) bool {
	return pgErrCode(err) == sqlstateUniqueViolation
}

// pgxNoRows reports whether the error is pgx.ErrNoRows from a bare Scan.
func pgxNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
