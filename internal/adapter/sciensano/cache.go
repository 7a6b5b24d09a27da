package sciensano

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Extractor is anything that can produce a fresh dataset.
type Extractor interface {
	ExtractDataset(ctx context.Context) (*domain.Dataset, error)
}

// CachedSource wraps an Extractor and reuses the last dataset while it is
// fresh: fetched on the current calendar day and younger than maxAge. The
// publisher updates the files once a day, so polling more often only costs
// bandwidth.
type CachedSource struct {
	inner    Extractor
	maxAge   time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	onLookup func(hit bool)

	mu        sync.Mutex
	dataset   *domain.Dataset
	fetchedAt time.Time
}

// NewCachedSource creates a freshness cache decorator around a source.
// onLookup may be nil.
func NewCachedSource(inner Extractor, maxAge time.Duration, clock clockwork.Clock, logger *slog.Logger, onLookup func(hit bool)) *CachedSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedSource{
		inner:    inner,
		maxAge:   maxAge,
		clock:    clock,
		logger:   logger,
		onLookup: onLookup,
	}
}

// ExtractDataset returns the cached dataset when fresh, otherwise fetches a
// new one. A failed fetch leaves the previous dataset in place.
func (c *CachedSource) ExtractDataset(ctx context.Context) (*domain.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.dataset != nil && c.fresh(now) {
		c.observe(true)
		return c.dataset, nil
	}
	c.observe(false)

	ds, err := c.inner.ExtractDataset(ctx)
	if err != nil {
		return nil, err
	}
	c.dataset = ds
	c.fetchedAt = now
	c.logger.Info("dataset refreshed", "fetched_at", now.Format(time.RFC3339))
	return ds, nil
}

// FetchedAt is when the cached dataset was downloaded, zero if never.
func (c *CachedSource) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

func (c *CachedSource) fresh(now time.Time) bool {
	sameDay := domain.DaysBetween(c.fetchedAt, now) == 0
	return sameDay && now.Sub(c.fetchedAt) < c.maxAge
}

func (c *CachedSource) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}
