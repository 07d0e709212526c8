// Package core holds the domain model shared by storage, services and the
// HTTP layer: ledger entries, budgets, recurring bills, import rules and the
// calendar arithmetic they depend on.
package core

import (
	"fmt"
	"time"
)

// ISODate is the canonical wire and storage format for calendar dates.
const ISODate = "2006-01-02"

// Date is a calendar date at UTC midnight. Time-of-day is never meaningful
// in the ledger.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(ISODate, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(ISODate)
}

// AddDays returns the date shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// MarshalJSON renders the date as "YYYY-MM-DD" rather than RFC3339.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

// UnmarshalJSON accepts a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NextOccurrence advances a due date by exactly one period. The arithmetic
// is deliberately calendar-naive: fixed day counts rather than "same day
// next month". Weekly +7, quarterly +90, yearly +365, everything else
// (monthly included) +30. An unknown frequency falls back to the monthly
// rule instead of erroring.
func NextOccurrence(d Date, f Frequency) Date {
	switch f {
	case Weekly:
		return d.AddDays(7)
	case Quarterly:
		return d.AddDays(90)
	case Yearly:
		return d.AddDays(365)
	default:
		return d.AddDays(30)
	}
}
