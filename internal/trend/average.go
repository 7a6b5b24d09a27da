package trend

import (
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
)

// AverageWindow is the width of the rolling average used by every projection.
const AverageWindow = 7

// RollingAverage averages the |windowOffset| days ending at anchor when the
// offset is negative, or starting at anchor when it is positive. Days without
// a value are skipped rather than counted as zero. ok is false when no day in
// the window holds a value or the offset is zero.
func RollingAverage(s *domain.Series, anchor time.Time, windowOffset int) (avg float64, ok bool) {
	if windowOffset == 0 || s.Len() == 0 {
		return 0, false
	}

	n := windowOffset
	start := domain.NormalizeDate(anchor)
	if windowOffset < 0 {
		n = -windowOffset
		start = domain.DateFrom(anchor, -(n - 1))
	}

	var mean float64
	count := 0
	for i := 0; i < n; i++ {
		v, found := s.Total(domain.DateFrom(start, i))
		if !found {
			continue
		}
		count++
		// Running mean keeps a constant window exactly constant.
		mean += (v - mean) / float64(count)
	}
	if count == 0 {
		return 0, false
	}
	return mean, true
}

// AveragePoints smooths points with a trailing calendar-day window: each output
// point averages the input points dated within windowSize days up to and
// including its own date. Points are sorted first; the output has one point
// per input point, with a partial window at the start.
func AveragePoints(points []domain.Point, windowSize int) []domain.Point {
	if windowSize < 1 {
		windowSize = 1
	}
	sorted := sortPoints(points)

	out := make([]domain.Point, len(sorted))
	lo := 0
	for i, p := range sorted {
		cutoff := domain.DateFrom(p.X, -(windowSize - 1))
		for sorted[lo].X.Before(cutoff) {
			lo++
		}
		var mean float64
		for j := lo; j <= i; j++ {
			mean += (sorted[j].Y - mean) / float64(j-lo+1)
		}
		out[i] = domain.Point{X: p.X, Y: mean}
	}
	return out
}

// RollingPoints smooths a whole series, one point per day holding a value.
func RollingPoints(s *domain.Series, windowSize int) []domain.Point {
	return AveragePoints(s.Points(), windowSize)
}
