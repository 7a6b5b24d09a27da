package trend

import (
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
)

const (
	// ProjectionInterval is the distance in days between the two rolling
	// averages a growth rate is measured from.
	ProjectionInterval = 7

	// MaxDoublingLookback bounds the backward search for a doubling period.
	MaxDoublingLookback = 365

	// maxProjectionDays caps projections so an almost flat trend cannot
	// overflow the day offset.
	maxProjectionDays = 100 * 366
)

// Labels rendered by DayToValueString.
const (
	LabelToday    = "Today"
	LabelExceeded = "Exceeded"
)

func anchorOrDefault(limit time.Time) time.Time {
	if limit.IsZero() {
		return domain.LastConsolidatedDataDay()
	}
	return domain.NormalizeDate(limit)
}

// DayToValue projects the day the series reaches target, assuming the growth
// between the 7-day averages at limit-7 and limit continues at a constant
// compound rate. A zero limit anchors on the last consolidated day.
//
// ok is false when either average is missing or zero, when the trend is flat
// or declining, or when the solve is not finite: there is no forward date at
// which a non-rising quantity reaches the target.
func DayToValue(s *domain.Series, target float64, limit time.Time) (time.Time, bool) {
	limit = anchorOrDefault(limit)

	day1, ok1 := RollingAverage(s, domain.DateFrom(limit, -ProjectionInterval), -AverageWindow)
	day2, ok2 := RollingAverage(s, limit, -AverageWindow)
	if !ok1 || !ok2 || day1 == 0 || day2 == 0 || day1 >= day2 {
		return time.Time{}, false
	}

	pcChange := (day2 - day1) / day1
	n := 1.0 / ProjectionInterval
	t := math.Log(target/day2) / (n * math.Log(1+(pcChange/n)))
	if math.IsNaN(t) || math.IsInf(t, 0) || math.Abs(t) > maxProjectionDays {
		return time.Time{}, false
	}
	return domain.DateFrom(limit, roundHalfUp(t)), true
}

// DayToValueString renders DayToValue relative to today: the date when it is
// still ahead, "Today", "Exceeded" when the target was already passed, or ""
// when there is no projection. A zero today uses the package clock.
func DayToValueString(s *domain.Series, target float64, limit, today time.Time) string {
	d, ok := DayToValue(s, target, limit)
	if !ok {
		return ""
	}
	if today.IsZero() {
		today = domain.Today()
	}
	switch days := domain.DaysBetween(today, d); {
	case days > 0:
		return d.Format(domain.DisplayLayout)
	case days == 0:
		return LabelToday
	default:
		return LabelExceeded
	}
}

// DoublingDate walks back one day at a time from limit until the 7-day
// average drops to half of its value at limit or lower, and returns that day.
// The walk stops without a result as soon as an average is missing or zero,
// when it passes the first day of the series, or after MaxDoublingLookback
// days. A zero limit anchors on the last consolidated day.
func DoublingDate(s *domain.Series, limit time.Time) (time.Time, bool) {
	limit = anchorOrDefault(limit)

	limitValue, ok := RollingAverage(s, limit, -AverageWindow)
	if !ok || limitValue == 0 {
		return time.Time{}, false
	}
	first, ok := s.First()
	if !ok {
		return time.Time{}, false
	}

	half := limitValue / 2
	for step := 1; step <= MaxDoublingLookback; step++ {
		date := domain.DateFrom(limit, -step)
		if date.Before(first) {
			return time.Time{}, false
		}
		value, ok := RollingAverage(s, date, -AverageWindow)
		if !ok || value == 0 {
			return time.Time{}, false
		}
		if value <= half {
			return date, true
		}
	}
	return time.Time{}, false
}

// DaysToDoubling is the number of days DoublingDate walked back.
func DaysToDoubling(s *domain.Series, limit time.Time) (int, bool) {
	limit = anchorOrDefault(limit)
	date, ok := DoublingDate(s, limit)
	if !ok {
		return 0, false
	}
	return domain.DaysBetween(date, limit), true
}

// DaysToDoublingString renders the doubling period as "N days", or "".
func DaysToDoublingString(s *domain.Series, limit time.Time) string {
	days, ok := DaysToDoubling(s, limit)
	if !ok {
		return ""
	}
	return strconv.Itoa(days) + " days"
}

// roundHalfUp rounds to the nearest integer, halves toward +Inf.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
