// Package domain holds the point-of-sale record types and the tagged error
// returned by the fulfillment core.
//
// Amounts are int64 minor currency units (cents) throughout. Nothing in this
// package touches the store.
//
// Callers pattern-match failures by kind:
//
//	switch domain.KindOf(err) {
//	case domain.KindValidation:        // fix the cart
//	case domain.KindInsufficientStock: // which line was short is in *Error
//	case domain.KindTransaction:       // resubmit later
//	case domain.KindIntegrity:         // bug, escalate
//	}
package domain
