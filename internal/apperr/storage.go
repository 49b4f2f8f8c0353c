package apperr

import (
	"context"
	"database/sql"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes we classify explicitly.
const (
	pgUniqueViolation    = "23505"
	pgSerializationFail  = "40001"
	pgDeadlockDetected   = "40P01"
	pgLockNotAvailable   = "55P03"
	pgQueryCanceled      = "57014"
	pgConnectionCodeClas = "08" // connection exception class
)

// FromStorage translates a low-level storage error into the taxonomy.
// Handlers must never see raw driver errors; repositories call this at the
// query or transaction boundary.
func FromStorage(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(KindNotFound, "record not found", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTransient, "storage operation timed out", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return Wrap(KindConflict, "a record with this value already exists", err)
		case pgErr.Code == pgSerializationFail,
			pgErr.Code == pgDeadlockDetected,
			pgErr.Code == pgLockNotAvailable:
			return Wrap(KindTransient, "storage write conflict", err)
		case pgErr.Code == pgQueryCanceled:
			return Wrap(KindTransient, "storage operation canceled", err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgConnectionCodeClas:
			return Wrap(KindTransient, "storage connection failed", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(KindTransient, "storage connection failed", err)
	}

	return Wrap(KindInternal, "storage operation failed", err)
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
// The ingestion path treats this as the canonical already-processed signal.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == KindConflict
	}
	return false
}
