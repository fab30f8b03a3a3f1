package models

import (
	"fmt"
	"time"
)

// Date is a calendar day in canonical YYYY-MM-DD form. The empty string means
// "not set". Because the form is ISO, lexicographic comparison is date order.
type Date string

const dateLayout = "2006-01-02"

func NewDate(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Today returns the current day in the given location.
func Today(loc *time.Location) Date {
	return NewDate(time.Now().In(loc))
}

// ParseDate canonicalizes s into a Date. It accepts a plain YYYY-MM-DD day or
// a full RFC 3339 timestamp (some clients send whole timestamps for date
// fields); anything else is an error. Empty input stays empty.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return NewDate(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t), nil
	}
	return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
}

func (d Date) IsZero() bool { return d == "" }

func (d Date) After(other Date) bool  { return string(d) > string(other) }
func (d Date) Before(other Date) bool { return string(d) < string(other) }

// InMonth reports whether d falls inside the given year and month.
func (d Date) InMonth(year, month int) bool {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	return len(d) == len(dateLayout) && string(d[:len(prefix)]) == prefix
}

// InYear reports whether d falls inside the given year.
func (d Date) InYear(year int) bool {
	prefix := fmt.Sprintf("%04d-", year)
	return len(d) == len(dateLayout) && string(d[:len(prefix)]) == prefix
}
