// Package discover finds the last valid listing page of a blog.
//
// A page is valid when it lists at least one post. Validity is assumed to be
// monotonic: every page between start and the last valid page is valid. The
// search grows a right boundary exponentially from start and then bisects,
// so the probe count is logarithmic in the number of pages.
package discover

import (
	"context"
	"sync/atomic"

	apperrors "lofterscraper/pkg/errors"
	"lofterscraper/pkg/logger"
	"lofterscraper/pkg/metrics"
)

const (
	// DefaultSeedSpan is how far beyond start the first unbounded probe lands
	DefaultSeedSpan = 32
	// DefaultCeiling caps exponential probing
	DefaultCeiling = 65536
)

// Prober reports whether a listing page is valid. Fetch errors count as invalid.
type Prober interface {
	Valid(ctx context.Context, page int) bool
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context, page int) bool

func (f ProberFunc) Valid(ctx context.Context, page int) bool {
	return f(ctx, page)
}

// Discoverer runs the page-range search against a single blog
type Discoverer struct {
	prober   Prober
	seedSpan int
	ceiling  int
	logger   logger.Logger
	metrics  *metrics.Metrics
	probes   int64
}

// Option configures a Discoverer
type Option func(*Discoverer)

func WithSeedSpan(span int) Option {
	return func(d *Discoverer) {
		if span > 0 {
			d.seedSpan = span
		}
	}
}

func WithCeiling(ceiling int) Option {
	return func(d *Discoverer) {
		if ceiling > 0 {
			d.ceiling = ceiling
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(d *Discoverer) { d.logger = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Discoverer) { d.metrics = m }
}

// New creates a Discoverer probing pages through p
func New(p Prober, opts ...Option) *Discoverer {
	d := &Discoverer{
		prober:   p,
		seedSpan: DefaultSeedSpan,
		ceiling:  DefaultCeiling,
		logger:   logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Probes returns the number of validity probes issued so far
func (d *Discoverer) Probes() int {
	return int(atomic.LoadInt64(&d.probes))
}

func (d *Discoverer) valid(ctx context.Context, page int) bool {
	atomic.AddInt64(&d.probes, 1)
	d.metrics.Probe()
	ok := d.prober.Valid(ctx, page)
	d.logger.DebugWithFields("Probed page", map[string]interface{}{
		"page":  page,
		"valid": ok,
	})
	return ok
}

// EndPage returns the largest valid page reachable from start. When maxCount
// is positive the search never goes past start+maxCount-1, and that page is
// returned after a single probe if it is valid. An invalid start page is a
// fatal input error.
func (d *Discoverer) EndPage(ctx context.Context, start, maxCount int) (int, error) {
	if start < 1 {
		return 0, apperrors.Fatal("discover", "start page must be >= 1, got %d", start)
	}
	if maxCount < 0 {
		return 0, apperrors.Fatal("discover", "max pages must be >= 0, got %d", maxCount)
	}

	if maxCount > 0 {
		end := start + maxCount - 1
		if end > start && d.valid(ctx, end) {
			return end, nil
		}
		if !d.valid(ctx, start) {
			return 0, d.invalidStart(start)
		}
		return d.bisect(ctx, start, end), nil
	}

	if !d.valid(ctx, start) {
		return 0, d.invalidStart(start)
	}
	if start >= d.ceiling {
		return start, nil
	}

	left, span := start, d.seedSpan
	right := min(start+span, d.ceiling)
	for d.valid(ctx, right) {
		left = right
		if right >= d.ceiling {
			d.logger.WarnWithFields("Page ceiling reached", map[string]interface{}{
				"ceiling": d.ceiling,
			})
			return right, nil
		}
		span *= 2
		right = min(start+span, d.ceiling)
	}
	return d.bisect(ctx, left, right), nil
}

// bisect narrows a valid left and an invalid right boundary until they are
// adjacent and returns the last page confirmed valid.
func (d *Discoverer) bisect(ctx context.Context, left, right int) int {
	for right-left > 1 {
		middle := left + (right-left)/2
		if d.valid(ctx, middle) {
			left = middle
		} else {
			right = middle
		}
	}
	return left
}

func (d *Discoverer) invalidStart(start int) error {
	return apperrors.Fatal("discover", "the given start page %d is invalid", start)
}
