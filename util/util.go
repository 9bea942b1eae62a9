package util

import (
	"fmt"
	"time"
)

// DateLayout is the date format accepted and printed by the cli and
// the HTTP API.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in UTC.  An empty string yields
// the zero time.
func ParseDate(s string) (t time.Time, err error) {
	if s == "" {
		return
	}
	t, err = time.Parse(DateLayout, s)
	if err != nil {
		err = fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return
}

// ParseDateRange parses both ends of a date range and checks that
// from is not after to.
func ParseDateRange(fromStr, toStr string) (from, to time.Time, err error) {
	from, err = ParseDate(fromStr)
	if err != nil {
		return
	}
	to, err = ParseDate(toStr)
	if err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		err = fmt.Errorf("date range starts %s after it ends %s", fromStr, toStr)
	}
	return
}
