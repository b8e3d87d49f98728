package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/pos/internal/domain"
)

// Failure causes reported by Cause. Used as log fields.
const (
	CauseBusy          = "busy"
	CauseSerialization = "serialization"
	CauseDeadlock      = "deadlock"
	CauseLockTimeout   = "lock_timeout"
	CauseConstraint    = "constraint"
	CauseDeadline      = "deadline"
	CauseCanceled      = "canceled"
	CauseOther         = "other"
)

// Classify turns a store error into a *domain.Error of KindTransaction.
// Errors that already carry a domain kind pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return domain.NewTransactionError(op, err)
}

// Cause names the underlying reason of a store failure.
func Cause(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return CauseDeadline
	case errors.Is(err, context.Canceled):
		return CauseCanceled
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return CauseBusy
		case sqlite3.ErrConstraint:
			return CauseConstraint
		case sqlite3.ErrInterrupt:
			return CauseCanceled
		}
		return CauseOther
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001":
			return CauseSerialization
		case pgErr.Code == "40P01":
			return CauseDeadlock
		case pgErr.Code == "55P03":
			return CauseLockTimeout
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23":
			return CauseConstraint
		}
		return CauseOther
	}

	return CauseOther
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
