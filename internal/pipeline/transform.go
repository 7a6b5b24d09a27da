package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/config"
	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/couchcryptid/epi-trends-service/internal/trend"
)

// Reporter implements Transformer: it builds one RegionReport per configured
// region from a dataset.
type Reporter struct {
	detector  *trend.Detector
	reference *config.Reference
	regions   []string
	logger    *slog.Logger
}

// NewReporter creates a Reporter. A nil reference uses the built-in reference
// data; an empty region list reports every known region.
func NewReporter(detector *trend.Detector, reference *config.Reference, regions []string, logger *slog.Logger) *Reporter {
	if reference == nil {
		reference = config.DefaultReference()
	}
	if len(regions) == 0 {
		regions = domain.Regions()
	}
	return &Reporter{
		detector:  detector,
		reference: reference,
		regions:   regions,
		logger:    logger,
	}
}

// Regions lists the regions the reporter builds reports for.
func (r *Reporter) Regions() []string {
	return r.regions
}

// BuildReports builds the report of every configured region.
func (r *Reporter) BuildReports(ctx context.Context, ds *domain.Dataset) ([]domain.RegionReport, error) {
	reports := make([]domain.RegionReport, 0, len(r.regions))
	for _, region := range r.regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report, err := r.Report(ds, region)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Report builds the report of a single region, anchored on the last
// consolidated day of the package clock.
func (r *Reporter) Report(ds *domain.Dataset, region string) (domain.RegionReport, error) {
	if !domain.IsKnownRegion(region) {
		return domain.RegionReport{}, fmt.Errorf("unknown region %q", region)
	}

	regional := domain.FilterByRegion(ds, region)
	ref, _ := r.reference.Region(region)
	a := anchors{
		today:        domain.Today(),
		yesterday:    domain.Yesterday(),
		consolidated: domain.LastConsolidatedDataDay(),
	}

	report := domain.RegionReport{
		Region:          region,
		ConsolidatedDay: a.consolidated,
		GeneratedAt:     domain.Now(),
		Fingerprint:     regional.Fingerprint(),
		Variables:       make([]domain.VariableReport, 0, len(domain.Variables)+1),
	}

	for _, v := range domain.Variables {
		s := regional.Series(v)
		vr := r.variableReport(v, s, a, capacityFor(v, ref))
		r.addRateOfChange(&vr, s, a.consolidated)
		report.Variables = append(report.Variables, vr)
	}

	if ref.Population > 0 {
		incidence := trend.Incidence(regional.Series(domain.VariableCases), ref.Population)
		report.Variables = append(report.Variables, r.variableReport(domain.VariableIncidence, incidence, a, 0))
	}

	r.logger.Debug("region report built", "region", region, "fingerprint", report.Fingerprint)
	return report, nil
}

type anchors struct {
	today        time.Time
	yesterday    time.Time
	consolidated time.Time
}

// variableReport fills the summary row of one variable. Cases show no raw
// value for yesterday, incidence shows no average: both follow how the
// figures are published.
func (r *Reporter) variableReport(v domain.Variable, s *domain.Series, a anchors, capacity float64) domain.VariableReport {
	vr := domain.VariableReport{
		Variable: v,
		Regional: v.HasRegionalBreakdown(),
	}

	if v != domain.VariableIncidence {
		if avg, ok := trend.RollingAverage(s, a.consolidated, -trend.AverageWindow); ok {
			vr.Average = &avg
		}
	}
	if v != domain.VariableCases {
		if y, ok := trend.RollingAverage(s, a.yesterday, 1); ok {
			vr.Yesterday = &y
		}
	}

	if days, ok := trend.DaysToDoubling(s, a.consolidated); ok {
		vr.DoublingDays = &days
		vr.Doubling = trend.DaysToDoublingString(s, a.consolidated)
	}

	if peak, ok := r.detector.Peak(s); ok {
		vr.Peak = &peak
		vr.NextPeak = trend.DayToValueString(s, peak.Total, a.consolidated, a.today)
	}

	if capacity > 0 {
		vr.Capacity = &capacity
		vr.Saturation = trend.DayToValueString(s, capacity, a.consolidated, a.today)
	}
	return vr
}

// addRateOfChange sets the latest week-over-week change up to the
// consolidated day and the trend fitted over it.
func (r *Reporter) addRateOfChange(vr *domain.VariableReport, s *domain.Series, consolidated time.Time) {
	all := trend.RateOfChange(s)
	points := make([]domain.Point, 0, len(all))
	for _, p := range all {
		if !p.X.After(consolidated) {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return
	}
	latest := points[len(points)-1].Y
	vr.RateOfChange = &latest

	if fitted := trend.FitTrendSince(points, trend.TrendDegree, r.reference.RegressionStart); len(fitted) > 0 {
		vr.Trend = fitted
	}
}

// capacityFor returns the bed capacity a variable saturates toward, zero when
// the variable is not bed-bound or the capacity is unknown.
func capacityFor(v domain.Variable, ref config.RegionReference) float64 {
	switch v {
	case domain.VariableTotalHospitalizations:
		return ref.HospitalBeds
	case domain.VariableTotalICU:
		return ref.ICUBeds
	default:
		return 0
	}
}
