package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes fulfillment failures.
type ErrorKind string

const (
	// KindValidation indicates the cart or payment was rejected before any write.
	KindValidation ErrorKind = "VALIDATION_ERROR"

	// KindInsufficientStock indicates a line could not be covered by available batches.
	KindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"

	// KindTransaction indicates the store failed (commit, lock wait, connectivity,
	// deadline). The whole checkout may be resubmitted.
	KindTransaction ErrorKind = "TRANSACTION_FAILURE"

	// KindIntegrity indicates persisted data disagrees with itself.
	KindIntegrity ErrorKind = "INTEGRITY_ERROR"
)

// ErrNotFound is returned by readers when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Error is the tagged failure returned by the fulfillment core.
//
// Line is the 1-based cart line the failure refers to, or 0. MenuItemID,
// Requested and Available are set for KindInsufficientStock.
type Error struct {
	Kind       ErrorKind
	Message    string
	Line       int
	MenuItemID int64
	Requested  int
	Available  int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the same cart may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransaction
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsValidation returns true if err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsInsufficientStock returns true if err is a stock shortage.
func IsInsufficientStock(err error) bool { return KindOf(err) == KindInsufficientStock }

// IsTransactionFailure returns true if err is a store/transaction failure.
func IsTransactionFailure(err error) bool { return KindOf(err) == KindTransaction }

// IsIntegrity returns true if err is a data integrity failure.
func IsIntegrity(err error) bool { return KindOf(err) == KindIntegrity }

// NewValidationError creates a validation failure for a cart line (0 for the whole cart).
func NewValidationError(line int, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	}
}

// NewInsufficientStockError creates a shortage failure for one menu item.
func NewInsufficientStockError(menuItemID int64, requested, available int) *Error {
	return &Error{
		Kind:       KindInsufficientStock,
		Message:    fmt.Sprintf("menu item %d: requested %d, available %d", menuItemID, requested, available),
		MenuItemID: menuItemID,
		Requested:  requested,
		Available:  available,
	}
}

// NewTransactionError wraps a store failure that happened during op.
func NewTransactionError(op string, err error) *Error {
	return &Error{
		Kind:    KindTransaction,
		Message: op,
		Err:     err,
	}
}

// NewIntegrityError reports persisted data that fails a consistency check.
func NewIntegrityError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindIntegrity,
		Message: fmt.Sprintf(format, args...),
	}
}
