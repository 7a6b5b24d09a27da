package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/couchcryptid/epi-trends-service/internal/observability"
	"github.com/couchcryptid/epi-trends-service/internal/pipeline"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	mu      sync.Mutex
	dataset *domain.Dataset
	err     error
	calls   int
}

func (m *mockExtractor) ExtractDataset(_ context.Context) (*domain.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.dataset, nil
}

func (m *mockExtractor) set(ds *domain.Dataset, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = ds
	m.err = err
}

type mockTransformer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockTransformer) BuildReports(_ context.Context, ds *domain.Dataset) ([]domain.RegionReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	fp := ds.Fingerprint()
	return []domain.RegionReport{
		{Region: domain.NationalRegion, Fingerprint: fp},
		{Region: "Namur", Fingerprint: fp},
	}, nil
}

func (m *mockTransformer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockLoader struct {
	mu       sync.Mutex
	err      error
	attempts int
	loaded   [][]domain.RegionReport
}

func (m *mockLoader) LoadBatch(_ context.Context, reports []domain.RegionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, reports)
	return nil
}

func (m *mockLoader) batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func datasetWith(total float64) *domain.Dataset {
	ds := domain.NewDataset()
	ds.Variables[domain.VariableCases] = []domain.Record{
		{Date: time.Date(2020, 10, 1, 0, 0, 0, 0, time.Local), Province: "Namur", Total: total},
	}
	return ds
}

func freezeToday(t *testing.T, at time.Time) *clockwork.FakeClock {
	t.Helper()
	clk := clockwork.NewFakeClockAt(at)
	domain.SetClock(clk)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})
	return clk
}

// --- tests ---

func TestPipeline_Refresh_BuildsAndLoads(t *testing.T) {
	freezeToday(t, time.Date(2020, 10, 5, 9, 0, 0, 0, time.Local))
	ext := &mockExtractor{dataset: datasetWith(10)}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, tfm, ldr, slog.Default(), metrics, time.Hour)
	require.Error(t, p.CheckReadiness(context.Background()))

	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeBuilt, outcome)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Len(t, p.Reports(), 2)
	report, ok := p.Report("Namur")
	require.True(t, ok)
	assert.Equal(t, "Namur", report.Region)
	_, ok = p.Report("Hainaut")
	assert.False(t, ok)

	assert.Equal(t, 1, ldr.batches())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues(pipeline.OutcomeBuilt)))

	// Every report of a cycle carries the same refresh id.
	national, _ := p.Report(domain.NationalRegion)
	_, err = uuid.Parse(national.RefreshID)
	require.NoError(t, err)
	assert.Equal(t, national.RefreshID, report.RefreshID)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ReportsProduced))
	assert.Positive(t, testutil.ToFloat64(metrics.LastRefresh))
}

func TestPipeline_Refresh_UnchangedDatasetIsNotRebuilt(t *testing.T) {
	freezeToday(t, time.Date(2020, 10, 5, 9, 0, 0, 0, time.Local))
	ext := &mockExtractor{dataset: datasetWith(10)}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(ext, tfm, ldr, slog.Default(), metrics, time.Hour)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)

	// Same content, new pointer.
	ext.set(datasetWith(10), nil)
	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeUnchanged, outcome)
	assert.Equal(t, 1, tfm.callCount())
	assert.Equal(t, 1, ldr.batches())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues(pipeline.OutcomeUnchanged)))
}

func TestPipeline_Refresh_ChangedDatasetIsRebuilt(t *testing.T) {
	freezeToday(t, time.Date(2020, 10, 5, 9, 0, 0, 0, time.Local))
	ext := &mockExtractor{dataset: datasetWith(10)}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}
	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), time.Hour)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	before, _ := p.Report(domain.NationalRegion)

	ext.set(datasetWith(11), nil)
	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)
	after, _ := p.Report(domain.NationalRegion)
	assert.NotEqual(t, before.RefreshID, after.RefreshID)

	assert.Equal(t, pipeline.OutcomeBuilt, outcome)
	assert.Equal(t, 2, tfm.callCount())
	assert.Equal(t, 2, ldr.batches())
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
}

func TestPipeline_Refresh_ProvinceCorrectionRebuilds(t *testing.T) {
	freezeToday(t, time.Date(2020, 10, 5, 9, 0, 0, 0, time.Local))
	day := time.Date(2020, 10, 1, 0, 0, 0, 0, time.Local)
	split := func(namur, limburg float64) *domain.Dataset {
		ds := domain.NewDataset()
		ds.Variables[domain.VariableCases] = []domain.Record{
			{Date: day, Province: "Limburg", Total: limburg},
			{Date: day, Province: "Namur", Total: namur},
		}
		return ds
	}

	ext := &mockExtractor{dataset: split(1500, 50)}
	tfm := &mockTransformer{}
	p := pipeline.New(ext, tfm, nil, slog.Default(), newTestMetrics(), time.Hour)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	before, _ := p.Report("Namur")

	// Same national total, moved between provinces.
	ext.set(split(50, 1500), nil)
	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)
	after, _ := p.Report("Namur")

	assert.Equal(t, pipeline.OutcomeBuilt, outcome)
	assert.Equal(t, 2, tfm.callCount())
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
}

func TestPipeline_Refresh_NewConsolidatedDayRebuilds(t *testing.T) {
	clk := freezeToday(t, time.Date(2020, 10, 5, 23, 0, 0, 0, time.Local))
	ext := &mockExtractor{dataset: datasetWith(10)}
	tfm := &mockTransformer{}
	p := pipeline.New(ext, tfm, nil, slog.Default(), newTestMetrics(), time.Hour)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	outcome, err := p.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeBuilt, outcome)
	assert.Equal(t, 2, tfm.callCount())
}

func TestPipeline_Refresh_LoadFailureRetriesWithoutRebuild(t *testing.T) {
	freezeToday(t, time.Date(2020, 10, 5, 9, 0, 0, 0, time.Local))
	ext := &mockExtractor{dataset: datasetWith(10)}
	tfm := &mockTransformer{}
	ldr := &mockLoader{err: errors.New("broker unavailable")}
	metrics := newTestMetrics()
	p := pipeline.New(ext, tfm, ldr, slog.Default(), metrics, time.Hour)

	outcome, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, pipeline.OutcomeError, outcome)
	// Reports are served even though publishing failed.
	require.NoError(t, p.CheckReadiness(context.Background()))

	ldr.mu.Lock()
	ldr.err = nil
	ldr.mu.Unlock()

	outcome, err = p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeBuilt, outcome)
	assert.Equal(t, 1, tfm.callCount())
	assert.Equal(t, 1, ldr.batches())
	assert.Equal(t, 2, ldr.attempts)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues(pipeline.OutcomeError)))

	outcome, err = p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeUnchanged, outcome)
	assert.Equal(t, 1, ldr.batches())
}

func TestPipeline_Refresh_ExtractError(t *testing.T) {
	ext := &mockExtractor{err: errors.New("source down")}
	tfm := &mockTransformer{}
	metrics := newTestMetrics()
	p := pipeline.New(ext, tfm, &mockLoader{}, slog.Default(), metrics, time.Hour)

	outcome, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source down")
	assert.Equal(t, pipeline.OutcomeError, outcome)
	assert.Equal(t, 0, tfm.callCount())
	assert.Nil(t, p.Reports())
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues(pipeline.OutcomeError)))
}

func TestPipeline_Refresh_TransformError(t *testing.T) {
	ext := &mockExtractor{dataset: datasetWith(10)}
	tfm := &mockTransformer{err: errors.New("bad data")}
	ldr := &mockLoader{}
	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), time.Hour)

	_, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, ldr.batches())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{dataset: datasetWith(10)}
	metrics := newTestMetrics()
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), metrics, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, ext.calls)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_RefreshesEveryInterval(t *testing.T) {
	freezeToday(t, time.Date(2020, 10, 5, 9, 0, 0, 0, time.Local))
	clk := clockwork.NewFakeClock()
	ext := &mockExtractor{dataset: datasetWith(10)}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}
	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics(), time.Hour, pipeline.WithClock(clk))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First cycle runs immediately, then the loop waits on the interval timer.
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, ldr.batches())

	ext.set(datasetWith(12), nil)
	clk.Advance(time.Hour)
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	assert.Equal(t, 2, ldr.batches())

	cancel()
	require.NoError(t, <-done)
}

func TestPipeline_Run_BacksOffAfterFailure(t *testing.T) {
	freezeToday(t, time.Date(2020, 10, 5, 9, 0, 0, 0, time.Local))
	clk := clockwork.NewFakeClock()
	ext := &mockExtractor{err: errors.New("source down")}
	tfm := &mockTransformer{}
	p := pipeline.New(ext, tfm, nil, slog.Default(), newTestMetrics(), time.Hour, pipeline.WithClock(clk))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// The failed cycle waits on the backoff timer, not the hourly interval.
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	ext.set(datasetWith(10), nil)
	clk.Advance(200 * time.Millisecond)

	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, tfm.callCount())
	require.NoError(t, p.CheckReadiness(ctx))

	cancel()
	require.NoError(t, <-done)
}
