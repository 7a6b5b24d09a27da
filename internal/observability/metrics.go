package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "epi_trends"

// Metrics holds the Prometheus counters, histograms, and gauges for the report pipeline.
type Metrics struct {
	RefreshTotal     *prometheus.CounterVec // labels: outcome={built,unchanged,error}
	ReportsProduced  prometheus.Counter
	PipelineRunning  prometheus.Gauge
	LastRefresh      prometheus.Gauge
	RefreshDuration  prometheus.Histogram
	DatasetRecords   *prometheus.GaugeVec // labels: variable
	RowsSkipped      prometheus.Counter
	SourceRequests   *prometheus.CounterVec   // labels: file, outcome={success,error}
	SourceDuration   *prometheus.HistogramVec // labels: file
	SourceCache      *prometheus.CounterVec   // labels: result={hit,miss}
	PeakCacheLookups *prometheus.CounterVec   // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		ReportsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_produced_total",
			Help:      "Total region reports written to the sink topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete extract-build-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DatasetRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Aggregated records per variable in the current dataset.",
		}, []string{"variable"}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Source rows dropped for lack of a date.",
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Open-data file downloads by file and outcome.",
		}, []string{"file", "outcome"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Open-data file download duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"file"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Dataset freshness cache lookups by result.",
		}, []string{"result"}),
		PeakCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peak_cache_total",
			Help:      "Peak detector cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RefreshTotal,
		m.ReportsProduced,
		m.PipelineRunning,
		m.LastRefresh,
		m.RefreshDuration,
		m.DatasetRecords,
		m.RowsSkipped,
		m.SourceRequests,
		m.SourceDuration,
		m.SourceCache,
		m.PeakCacheLookups,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}

// PeakLookup counts a peak cache lookup. Its signature matches
// trend.WithLookupHook.
func (m *Metrics) PeakLookup(hit bool) {
	m.PeakCacheLookups.WithLabelValues(hitLabel(hit)).Inc()
}

// SourceCacheLookup counts a dataset freshness cache lookup.
func (m *Metrics) SourceCacheLookup(hit bool) {
	m.SourceCache.WithLabelValues(hitLabel(hit)).Inc()
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
