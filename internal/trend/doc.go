// Package trend derives smoothed values and naive projections from daily
// series: rolling averages, peaks, day-to-value and doubling projections,
// polynomial trend lines, week-over-week rate of change and 14-day incidence.
//
// Every function is pure except [Detector], whose peak cache is guarded by a
// mutex. A result that cannot be computed is reported through a boolean or an
// empty slice, never as zero. Projections model constant-rate compound growth
// and answer only the rising case; they are extrapolations, not forecasts.
package trend
