// Package timeutil provides clock-of-day and calendar-date helpers for the
// scheduling core. All times of day are minutes since midnight over a
// half-open [start, end) convention; dates are treated as already-resolved
// instants without timezone conversion.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// ParseClock parses an "HH:MM" string into minutes since midnight.
//
// Parsing is deliberately forgiving: malformed or missing fields degrade to
// zero rather than returning an error, because stored time strings are
// validated at the boundary layer and the core must never fail a read path
// on dirty data.
func ParseClock(s string) int {
	hh, mm := splitClock(s)
	return hh*60 + mm
}

// ParseClockStrict parses an "HH:MM" string and reports whether it was well
// formed. Used by code that wants to distinguish "00:00" from garbage.
func ParseClockStrict(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// FormatClock renders minutes since midnight as a zero-padded "HH:MM" string.
// Out-of-range values are clamped into the day.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes >= MinutesPerDay {
		minutes = MinutesPerDay - 1
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// splitClock extracts hour and minute fields, defaulting each to zero.
func splitClock(s string) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	var hh, mm int
	if len(parts) > 0 {
		if v, err := strconv.Atoi(parts[0]); err == nil && v >= 0 && v < 24 {
			hh = v
		}
	}
	if len(parts) > 1 {
		if v, err := strconv.Atoi(parts[1]); err == nil && v >= 0 && v < 60 {
			mm = v
		}
	}
	return hh, mm
}

// StartOfDay returns midnight of the given instant's calendar day, in the
// instant's own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two instants fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormatDate renders a calendar date as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Clock abstracts "now" so services and tests control time explicitly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock implementation of Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock is a Clock pinned to a single instant, for tests.
type FixedClock struct {
	T time.Time
}

// Now returns the pinned instant.
func (c FixedClock) Now() time.Time {
	return c.T
}
