// Package recurrence computes annual occurrences of birthdays and ages.
//
// Everything here is a pure function of its arguments. Dates are civil dates
// (year, month, day) with no time-of-day or zone; callers convert "now" into
// the relevant civil date with TodayIn before asking questions.
//
// Feb 29 policy: in a year that is not a leap year, a Feb 29 birthday occurs
// on Feb 28. The same clamp applies to any day past the end of its month, so
// an occurrence is always a real calendar day and never an error.
package recurrence

import (
	"fmt"
	"time"
)

// Date is a civil calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date, normalising out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the civil date of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// TodayIn returns the civil date of now as seen in loc. A nil loc means UTC.
func TodayIn(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(now.In(loc))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// DaysBetween returns the number of whole days from a to b (negative when b
// is before a).
func DaysBetween(a, b Date) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Occurrence returns the date on which a (month, day) birthday falls in
// year, clamping the day to the end of the month (Feb 29 -> Feb 28 in
// non-leap years).
func Occurrence(month time.Month, day, year int) Date {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return Date{Year: year, Month: month, Day: day}
}

// NextOccurrence returns the first occurrence of the (month, day) birthday
// on or after today. The result is never before today.
func NextOccurrence(month time.Month, day int, today Date) Date {
	candidate := Occurrence(month, day, today.Year)
	if candidate.Before(today) {
		candidate = Occurrence(month, day, today.Year+1)
	}
	return candidate
}

// DaysUntil returns how many days remain until the next occurrence; zero
// means the birthday is today.
func DaysUntil(month time.Month, day int, today Date) int {
	return DaysBetween(today, NextOccurrence(month, day, today))
}

// OccursOn reports whether the (month, day) birthday falls on date under the
// clamp policy.
func OccursOn(month time.Month, day int, date Date) bool {
	return Occurrence(month, day, date.Year) == date
}

// Age returns the completed years of someone born on (year, month, day) as
// of today. The age increments on the birthday's occurrence in today's year,
// so a Feb 29 birthday ages on Feb 28 of non-leap years.
func Age(month time.Month, day, year int, today Date) int {
	age := today.Year - year
	if today.Before(Occurrence(month, day, today.Year)) {
		age--
	}
	return age
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
