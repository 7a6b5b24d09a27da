package trend

import "github.com/couchcryptid/epi-trends-service/internal/domain"

const (
	// IncidenceDays is the span incidence accumulates cases over.
	IncidenceDays = 14
	// IncidencePer is the population unit incidence is expressed in.
	IncidencePer = 100_000
)

// Incidence derives the 14-day cumulative cases per 100k inhabitants for
// every day from the first to the last day of cases. Missing days count as no
// cases. A non-positive population yields an empty series.
func Incidence(cases *domain.Series, population float64) *domain.Series {
	out := domain.NewSeries()
	if population <= 0 {
		return out
	}
	first, ok := cases.First()
	if !ok {
		return out
	}
	last, _ := cases.Last()

	var window float64
	for d := first; !d.After(last); d = domain.DateFrom(d, 1) {
		if v, ok := cases.Total(d); ok {
			window += v
		}
		if v, ok := cases.Total(domain.DateFrom(d, -IncidenceDays)); ok {
			window -= v
		}
		out.Set(d, domain.Number(window*IncidencePer/population))
	}
	return out
}
