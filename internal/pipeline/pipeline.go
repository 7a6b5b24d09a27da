package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/couchcryptid/epi-trends-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DatasetExtractor produces the current dataset from the source.
type DatasetExtractor interface {
	ExtractDataset(ctx context.Context) (*domain.Dataset, error)
}

// Transformer converts a dataset into region reports.
type Transformer interface {
	BuildReports(ctx context.Context, ds *domain.Dataset) ([]domain.RegionReport, error)
}

// BatchLoader writes region reports to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, reports []domain.RegionReport) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Refresh outcomes, used as the refresh_total metric label.
const (
	OutcomeBuilt     = "built"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

// snapshot is an immutable set of reports. A new snapshot replaces the old
// one atomically so readers never observe a partially built set.
type snapshot struct {
	reports      []domain.RegionReport
	byRegion     map[string]int
	fingerprint  uint64
	consolidated time.Time
	published    bool
}

func newSnapshot(reports []domain.RegionReport, fingerprint uint64, consolidated time.Time) *snapshot {
	byRegion := make(map[string]int, len(reports))
	for i, r := range reports {
		byRegion[r.Region] = i
	}
	return &snapshot{
		reports:      reports,
		byRegion:     byRegion,
		fingerprint:  fingerprint,
		consolidated: consolidated,
	}
}

// Pipeline orchestrates the extract-build-load refresh loop.
type Pipeline struct {
	extractor   DatasetExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	interval    time.Duration
	current     atomic.Pointer[snapshot]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the real clock used for refresh timers.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// New creates a Pipeline with the given stages and observability. loader may
// be nil, in which case reports are only served over HTTP.
func New(e DatasetExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		interval:    interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a report set has been built, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.current.Load() == nil {
		return errors.New("no reports built yet")
	}
	return nil
}

// Reports returns the latest report set, nil before the first refresh.
func (p *Pipeline) Reports() []domain.RegionReport {
	snap := p.current.Load()
	if snap == nil {
		return nil
	}
	return snap.reports
}

// Report returns the latest report of one region.
func (p *Pipeline) Report(region string) (domain.RegionReport, bool) {
	snap := p.current.Load()
	if snap == nil {
		return domain.RegionReport{}, false
	}
	i, ok := snap.byRegion[region]
	if !ok {
		return domain.RegionReport{}, false
	}
	return snap.reports[i], true
}

// Run refreshes the reports every interval until the context is cancelled.
// Failed cycles are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "refresh_interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		if _, err := p.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("refresh failed", "error", err, "retry_in", backoff)
			if !p.sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = initialBackoff
		if !p.sleepWithContext(ctx, p.interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Refresh runs one extract-build-load cycle and returns its outcome. Reports
// are rebuilt only when the dataset content or the consolidated day changed;
// a set that failed to load is retried without being rebuilt.
func (p *Pipeline) Refresh(ctx context.Context) (string, error) {
	start := p.clock.Now()

	ds, err := p.extractor.ExtractDataset(ctx)
	if err != nil {
		p.metrics.RefreshTotal.WithLabelValues(OutcomeError).Inc()
		return OutcomeError, fmt.Errorf("extract dataset: %w", err)
	}

	fingerprint := ds.Fingerprint()
	consolidated := domain.LastConsolidatedDataDay()

	snap := p.current.Load()
	outcome := OutcomeUnchanged
	if snap == nil || snap.fingerprint != fingerprint || !snap.consolidated.Equal(consolidated) {
		reports, err := p.transformer.BuildReports(ctx, ds)
		if err != nil {
			p.metrics.RefreshTotal.WithLabelValues(OutcomeError).Inc()
			return OutcomeError, fmt.Errorf("build reports: %w", err)
		}
		refreshID := uuid.NewString()
		for i := range reports {
			reports[i].RefreshID = refreshID
		}
		snap = newSnapshot(reports, fingerprint, consolidated)
		p.current.Store(snap)
		outcome = OutcomeBuilt
		p.logger.Info("reports built",
			"refresh_id", refreshID,
			"regions", len(reports),
			"consolidated_day", domain.FormatDay(consolidated),
		)
	}

	if !snap.published {
		if err := p.load(ctx, snap.reports); err != nil {
			p.metrics.RefreshTotal.WithLabelValues(OutcomeError).Inc()
			return OutcomeError, err
		}
		published := *snap
		published.published = true
		p.current.Store(&published)
		outcome = OutcomeBuilt
	}

	now := p.clock.Now()
	p.metrics.RefreshTotal.WithLabelValues(outcome).Inc()
	p.metrics.RefreshDuration.Observe(now.Sub(start).Seconds())
	p.metrics.LastRefresh.Set(float64(now.Unix()))
	return outcome, nil
}

func (p *Pipeline) load(ctx context.Context, reports []domain.RegionReport) error {
	if p.loader == nil || len(reports) == 0 {
		return nil
	}
	if err := p.loader.LoadBatch(ctx, reports); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(reports))
		return fmt.Errorf("load reports: %w", err)
	}
	p.metrics.ReportsProduced.Add(float64(len(reports)))
	return nil
}

// sleepWithContext is retry.SleepWithContext on the pipeline clock.
func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
