// Package window holds the calendar rules that decide which dates doctors may
// publish slots for and which dates patients may book.
//
// All comparisons are made on whole days in the location of "now"; the time of
// day never matters.
package window

import "time"

// DividerDay is the day of month on which the publishing window rolls forward.
const DividerDay = 28

const (
	ReasonBeforeDivider = "can only operate on next month's slots before the 28th"
	ReasonAfterDivider  = "between the 28th of this month and the 27th of next month, can only operate on month-after-next's slots"
)

// Decision is the result of a publishing window check.
type Decision struct {
	OK     bool
	Reason string
}

// Allowed reports whether a slot starting at candidate may be created, edited
// or deleted at now.
//
// Before the 28th only next month's dates are allowed. From the 28th onwards
// only the month after next is allowed.
func Allowed(now, candidate time.Time) Decision {
	today := startOfDay(now)
	day := startOfDay(candidate.In(now.Location()))

	thisDivider := dividerOf(today, 0)
	nextDivider := dividerOf(today, 1)

	switch {
	case today.Before(thisDivider):
		if within(day, firstDayOf(today, 1), lastDayOf(today, 1)) {
			return Decision{OK: true}
		}
		return Decision{Reason: ReasonBeforeDivider}
	case today.Before(nextDivider):
		if within(day, firstDayOf(today, 2), lastDayOf(today, 2)) {
			return Decision{OK: true}
		}
		return Decision{Reason: ReasonAfterDivider}
	}
	return Decision{Reason: ReasonAfterDivider}
}

// Bookable reports whether a patient may book a slot starting at start: the
// date must fall in the current or the next calendar month.
func Bookable(now, start time.Time) bool {
	today := startOfDay(now)
	day := startOfDay(start.In(now.Location()))
	return within(day, firstDayOf(today, 0), lastDayOf(today, 1))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dividerOf(day time.Time, monthOffset int) time.Time {
	return time.Date(day.Year(), day.Month()+time.Month(monthOffset), DividerDay, 0, 0, 0, 0, day.Location())
}

func firstDayOf(day time.Time, monthOffset int) time.Time {
	return time.Date(day.Year(), day.Month()+time.Month(monthOffset), 1, 0, 0, 0, 0, day.Location())
}

// day 0 of the following month normalizes to the last day of this one
func lastDayOf(day time.Time, monthOffset int) time.Time {
	return time.Date(day.Year(), day.Month()+time.Month(monthOffset)+1, 0, 0, 0, 0, 0, day.Location())
}

func within(day, first, last time.Time) bool {
	return !day.Before(first) && !day.After(last)
}
