package trend

import (
	"errors"
	"math"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TrendDegree is the polynomial degree of the rate-of-change overlay.
const TrendDegree = 2

// DefaultRegressionStart excludes the unstable first months of the series
// from trend fits.
var DefaultRegressionStart = time.Date(2020, time.August, 15, 0, 0, 0, 0, time.Local)

// Polynomial is a least-squares fit over day offsets from Origin.
// Coefficients[i] multiplies x^i.
type Polynomial struct {
	Origin       time.Time `json:"origin"`
	Coefficients []float64 `json:"coefficients"`
	RSquared     float64   `json:"r_squared"`
}

// At evaluates the polynomial at the day of x.
func (p Polynomial) At(x time.Time) float64 {
	offset := float64(domain.DaysBetween(p.Origin, x))
	var y float64
	for i := len(p.Coefficients) - 1; i >= 0; i-- {
		y = y*offset + p.Coefficients[i]
	}
	return y
}

// Fit solves the least-squares polynomial of the given degree through points.
// ok is false for a negative degree, fewer than degree+1 points, or a system
// too singular to yield finite coefficients.
func Fit(points []domain.Point, degree int) (Polynomial, bool) {
	if degree < 0 || len(points) < degree+1 {
		return Polynomial{}, false
	}
	sorted := sortPoints(points)
	origin := sorted[0].X

	a := mat.NewDense(len(sorted), degree+1, nil)
	b := mat.NewVecDense(len(sorted), nil)
	for i, p := range sorted {
		x := float64(domain.DaysBetween(origin, p.X))
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= x
		}
		b.SetVec(i, p.Y)
	}

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		// An ill-conditioned but solvable system still yields usable coefficients.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Polynomial{}, false
		}
	}

	poly := Polynomial{Origin: origin, Coefficients: make([]float64, degree+1)}
	for i := range poly.Coefficients {
		c := coef.AtVec(i)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Polynomial{}, false
		}
		poly.Coefficients[i] = c
	}

	estimates := make([]float64, len(sorted))
	values := make([]float64, len(sorted))
	for i, p := range sorted {
		estimates[i] = poly.At(p.X)
		values[i] = p.Y
	}
	poly.RSquared = stat.RSquaredFrom(estimates, values, nil)
	return poly, true
}

// FitTrend fits a polynomial of the given degree and evaluates it at every
// input x, in chronological order. It returns an empty slice when no fit is
// possible instead of failing the caller.
func FitTrend(points []domain.Point, degree int) []domain.Point {
	poly, ok := Fit(points, degree)
	if !ok {
		return []domain.Point{}
	}
	sorted := sortPoints(points)
	out := make([]domain.Point, len(sorted))
	for i, p := range sorted {
		out[i] = domain.Point{X: p.X, Y: poly.At(p.X)}
	}
	return out
}

// FitTrendSince is FitTrend over the points dated start or later.
func FitTrendSince(points []domain.Point, degree int, start time.Time) []domain.Point {
	start = domain.NormalizeDate(start)
	filtered := make([]domain.Point, 0, len(points))
	for _, p := range points {
		if !p.X.Before(start) {
			filtered = append(filtered, p)
		}
	}
	return FitTrend(filtered, degree)
}
