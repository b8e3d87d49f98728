// Package clock supplies wall-clock time to the store writers.
//
// Every timestamp the core persists (order, payment, ledger, batch) comes from
// a Clock so tests can pin it and receipts render byte-identically.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the production clock. Times are returned in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts an ordinary function to a Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}
