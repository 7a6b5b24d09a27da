package trend

import "github.com/couchcryptid/epi-trends-service/internal/domain"

// Defaults for NewDetector.
const (
	DefaultPeakWindow    = 7
	DefaultPeakCacheSize = 256
)

// Detector finds the maximum of a smoothed series. Results are cached by the
// series' content fingerprint, so a rebuilt series with identical values hits
// the cache and a series whose values changed never returns a stale peak.
type Detector struct {
	window   int
	cache    *lruCache
	onLookup func(hit bool)
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithLookupHook registers a callback invoked on every cache lookup.
func WithLookupHook(fn func(hit bool)) DetectorOption {
	return func(d *Detector) {
		d.onLookup = fn
	}
}

// NewDetector creates a detector smoothing over window days and caching up to
// cacheSize peaks. Non-positive arguments fall back to the defaults.
func NewDetector(window, cacheSize int, opts ...DetectorOption) *Detector {
	if window < 1 {
		window = DefaultPeakWindow
	}
	if cacheSize < 1 {
		cacheSize = DefaultPeakCacheSize
	}
	d := &Detector{window: window, cache: newLRUCache(cacheSize)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window is the smoothing window in days.
func (d *Detector) Window() int {
	return d.window
}

// Peak returns the point with the highest smoothed value, the earliest one on
// ties. ok is false for an empty series.
func (d *Detector) Peak(s *domain.Series) (domain.PeakRecord, bool) {
	key := peakKey{fingerprint: s.Fingerprint(), window: d.window}
	if cached, hit := d.cache.get(key); hit {
		d.observe(true)
		return cached.record, cached.found
	}
	d.observe(false)

	record, found := FindPeak(RollingPoints(s, d.window))
	d.cache.put(key, peakResult{record: record, found: found})
	return record, found
}

func (d *Detector) observe(hit bool) {
	if d.onLookup != nil {
		d.onLookup(hit)
	}
}

// FindPeak returns the point with the highest y, the earliest one on ties.
func FindPeak(points []domain.Point) (domain.PeakRecord, bool) {
	sorted := sortPoints(points)
	if len(sorted) == 0 {
		return domain.PeakRecord{}, false
	}
	best := sorted[0]
	for _, p := range sorted[1:] {
		if p.Y > best.Y {
			best = p
		}
	}
	return domain.PeakRecord{Date: best.X, Total: best.Y}, true
}
