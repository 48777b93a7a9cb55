// Package hawl implements the pure time arithmetic for the lunar holding
// period.  No side effects, no I/O: every function is a deterministic
// function of its arguments so callers (the lifecycle service, the live
// tracker, tests) all share one definition of "day".
package hawl

import (
	"errors"
	"time"
)

// LunarYearDays is the length of the Hawl: one lunar year.
const LunarYearDays = 354

// ErrInvalidTimeRange means now precedes start.  That is an input-contract
// violation by the caller, not a domain state; operations fail closed on it.
var ErrInvalidTimeRange = errors.New("now is before start")

const day = 24 * time.Hour

// DaysElapsed returns the number of whole days between start and now,
// floored and never negative.  Days are counted as elapsed 24-hour periods
// between the two UTC instants, so leap days in the span count like any
// other day and no average-month arithmetic is involved.
func DaysElapsed(start, now time.Time) (int, error) {
	if now.Before(start) {
		return 0, ErrInvalidTimeRange
	}
	return int(now.Sub(start) / day), nil
}

// DaysRemaining returns max(0, durationDays - DaysElapsed).
func DaysRemaining(start, now time.Time, durationDays int) (int, error) {
	elapsed, err := DaysElapsed(start, now)
	if err != nil {
		return 0, err
	}
	if elapsed >= durationDays {
		return 0, nil
	}
	return durationDays - elapsed, nil
}

// ProgressPercent returns 100 * elapsed / duration.  It is intentionally
// not clamped: at exactly day 354 it reads 100.0 and keeps growing past it.
// Display layers clamp, this function does not.
func ProgressPercent(start, now time.Time, durationDays int) (float64, error) {
	elapsed, err := DaysElapsed(start, now)
	if err != nil {
		return 0, err
	}
	if durationDays <= 0 {
		return 0, nil
	}
	return 100 * float64(elapsed) / float64(durationDays), nil
}

// IsComplete reports whether the full duration has elapsed.
func IsComplete(start, now time.Time, durationDays int) (bool, error) {
	elapsed, err := DaysElapsed(start, now)
	if err != nil {
		return false, err
	}
	return elapsed >= durationDays, nil
}

// CompletionDate returns start plus durationDays calendar days.  AddDate is
// calendar-exact: no rounding, no drift across leap days.
func CompletionDate(start time.Time, durationDays int) time.Time {
	return start.AddDate(0, 0, durationDays)
}
