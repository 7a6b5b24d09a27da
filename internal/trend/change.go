package trend

import (
	"math"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
)

// WeeklySums returns, for every day whose trailing 7 days all hold a value,
// the sum of those 7 days. Days with an incomplete week are left out.
func WeeklySums(s *domain.Series) []domain.Point {
	dates := s.Dates()
	out := make([]domain.Point, 0, len(dates))
	for _, d := range dates {
		var sum float64
		complete := true
		for i := 0; i < AverageWindow; i++ {
			v, ok := s.Total(domain.DateFrom(d, -i))
			if !ok {
				complete = false
				break
			}
			sum += v
		}
		if complete {
			out = append(out, domain.Point{X: d, Y: sum})
		}
	}
	return out
}

// RateOfChange compares each weekly sum with the weekly sum seven days
// earlier, in percent. Days without a comparable week, or whose ratio is
// undefined, are left out.
func RateOfChange(s *domain.Series) []domain.Point {
	weekly := WeeklySums(s)
	byDay := make(map[string]float64, len(weekly))
	for _, p := range weekly {
		byDay[domain.FormatDay(p.X)] = p.Y
	}

	out := make([]domain.Point, 0, len(weekly))
	for _, p := range weekly {
		old, ok := byDay[domain.FormatDay(domain.DateFrom(p.X, -AverageWindow))]
		if !ok {
			continue
		}
		if ratio, ok := ChangeRatio(p.Y, old); ok {
			out = append(out, domain.Point{X: p.X, Y: ratio})
		}
	}
	return out
}

// ChangeRatio is the change from oldValue to newValue in percent, rounded to
// two decimals. A fall is expressed symmetrically to a rise: halving is -100,
// doubling is +100. ok is false when either side is zero and they differ.
func ChangeRatio(newValue, oldValue float64) (float64, bool) {
	switch {
	case newValue == oldValue:
		return 0, true
	case oldValue == 0, newValue == 0:
		return 0, false
	case newValue > oldValue:
		return roundTo(100*(newValue/oldValue-1), 2), true
	default:
		return roundTo(-100*(oldValue/newValue-1), 2), true
	}
}

// roundTo rounds x to the given number of decimals, halves away from zero.
func roundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
