package domain

import (
	"math"
	"time"
)

const (
	// ConsolidationLagDays is how many days before today the data is assumed to
	// have settled. Late reports keep revising the most recent days.
	ConsolidationLagDays = 2

	// DateLayout is the calendar-day layout used by the open-data files and
	// by Series JSON keys.
	DateLayout = "2006-01-02"

	// DisplayLayout renders a day the way the dashboard shows it ("Sat Oct 17 2026").
	DisplayLayout = "Mon Jan 02 2006"
)

// NormalizeDate strips the time of day, returning local midnight of the same
// calendar day. NormalizeDate(NormalizeDate(t)) == NormalizeDate(t).
func NormalizeDate(t time.Time) time.Time {
	t = t.In(time.Local)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// DateFrom shifts t by deltaDays calendar days (negative goes to the past) and
// normalizes the result.
func DateFrom(t time.Time, deltaDays int) time.Time {
	n := NormalizeDate(t)
	return time.Date(n.Year(), n.Month(), n.Day()+deltaDays, 0, 0, 0, 0, time.Local)
}

// DaysBetween returns the number of calendar days from a to b, positive when b
// is after a.
func DaysBetween(a, b time.Time) int {
	a, b = NormalizeDate(a), NormalizeDate(b)
	// Compare as UTC days so DST transitions do not shave an hour off the span.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(ub.Sub(ua).Hours() / 24))
}

// Today is the normalized current day according to the package clock.
func Today() time.Time {
	return NormalizeDate(clock.Now())
}

// Yesterday is the day before Today.
func Yesterday() time.Time {
	return DateFrom(Today(), -1)
}

// LastConsolidatedDataDay is the most recent day whose data is considered
// final. Averages, peaks and projections anchor on it rather than on the
// latest reported day.
func LastConsolidatedDataDay() time.Time {
	return DateFrom(Today(), -ConsolidationLagDays)
}

// ParseDay parses a "2006-01-02" calendar day into a normalized local date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// FormatDay renders a date as a "2006-01-02" key.
func FormatDay(t time.Time) string {
	return NormalizeDate(t).Format(DateLayout)
}
