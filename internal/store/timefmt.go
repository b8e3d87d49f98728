package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically on both
// engines and scan identically.
const (
	TimeLayout = "2006-01-02T15:04:05.000000Z07:00"
	DateLayout = "2006-01-02"
)

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders an optional date for storage; nil stays NULL.
func FormatDate(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.UTC().Format(DateLayout)
}

// ParseDate parses an optional stored date.
func ParseDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", ns.String, err)
	}
	return &d, nil
}
