package trend

import (
	"sort"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
)

// sortPoints returns a chronologically sorted copy with normalized dates.
func sortPoints(points []domain.Point) []domain.Point {
	sorted := make([]domain.Point, len(points))
	for i, p := range points {
		sorted[i] = domain.Point{X: domain.NormalizeDate(p.X), Y: p.Y}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].X.Before(sorted[j].X)
	})
	return sorted
}
