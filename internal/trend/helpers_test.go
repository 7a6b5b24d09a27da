package trend

import (
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
)

var testStart = time.Date(2020, time.September, 1, 0, 0, 0, 0, time.Local)

func day(offset int) time.Time {
	return domain.DateFrom(testStart, offset)
}

// seriesOf builds a daily series starting at testStart.
func seriesOf(values ...float64) *domain.Series {
	s := domain.NewSeries()
	for i, v := range values {
		s.Set(day(i), domain.Number(v))
	}
	return s
}

func constant(n int, c float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = c
	}
	return values
}
