package performance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// DefaultWindowDays is used when a caller passes a non-positive window.
const DefaultWindowDays = 30

// Source is the read and write access the aggregator needs. Every window
// query covers [since, now].
type Source interface {
	ListListings(ctx context.Context) ([]model.Listing, error)
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	InteractionCounts(ctx context.Context, listingID uint64, since time.Time) (views, clicks int, err error)
	BookingStats(ctx context.Context, listingID uint64, since time.Time) (count int, revenue float64, err error)
	WindowRatings(ctx context.Context, listingID uint64, since time.Time) ([]int, error)
	UpdateRankingScore(ctx context.Context, listingID uint64, score int, status model.PerformanceStatus, at time.Time) error
}

// ScoreResult reports the outcome for one listing of a bulk update.
type ScoreResult struct {
	ListingID uint64                  `json:"listing_id"`
	Score     int                     `json:"score"`
	Status    model.PerformanceStatus `json:"status"`
}

// LowPerformer is a listing under a score threshold.
type LowPerformer struct {
	Listing     model.Listing      `json:"listing"`
	Performance *model.Performance `json:"performance"`
}

// Aggregator computes and caches listing performance. It holds no global
// state; each instance owns its cache.
type Aggregator struct {
	src    Source
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCache replaces the default in-process cache.
func WithCache(c Cache) Option { return func(a *Aggregator) { a.cache = c } }

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option { return func(a *Aggregator) { a.ttl = ttl } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

// NewAggregator returns an Aggregator reading from src.
func NewAggregator(src Source, logger *logrus.Logger, opts ...Option) *Aggregator {
	if src == nil {
		panic("nil source passed to performance.NewAggregator")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &Aggregator{
		src:    src,
		cache:  NewMemoryCache(),
		ttl:    DefaultCacheTTL,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Performance returns the snapshot for listingID over the last windowDays
// days, served from cache when fresh.
func (a *Aggregator) Performance(ctx context.Context, listingID uint64, windowDays int) (*model.Performance, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	key := CacheKey(listingID, windowDays)
	if p, ok := a.cache.Get(ctx, key); ok {
		return p, nil
	}

	listing, err := a.src.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load listing %d: %w", listingID, err)
	}
	p, err := a.compute(ctx, listing, windowDays)
	if err != nil {
		return nil, err
	}
	a.cache.Set(ctx, key, p, a.ttl)
	return p, nil
}

func (a *Aggregator) compute(ctx context.Context, l *model.Listing, windowDays int) (*model.Performance, error) {
	now := a.now()
	since := now.AddDate(0, 0, -windowDays)

	views, clicks, err := a.src.InteractionCounts(ctx, l.ID, since)
	if err != nil {
		return nil, fmt.Errorf("count interactions for listing %d: %w", l.ID, err)
	}
	bookings, revenue, err := a.src.BookingStats(ctx, l.ID, since)
	if err != nil {
		return nil, fmt.Errorf("count bookings for listing %d: %w", l.ID, err)
	}
	ratings, err := a.src.WindowRatings(ctx, l.ID, since)
	if err != nil {
		return nil, fmt.Errorf("load ratings for listing %d: %w", l.ID, err)
	}

	m := ComputeMetrics(Counts{Views: views, Clicks: clicks, Bookings: bookings, Revenue: revenue, Ratings: ratings})
	status := StatusFor(m.PerformanceScore)
	return &model.Performance{
		ListingID:       l.ID,
		Title:           l.Title,
		WindowDays:      windowDays,
		Metrics:         m,
		Status:          status,
		Recommendations: Recommendations(status, m),
		LastUpdated:     now,
	}, nil
}

// UpdateListingScore recomputes one listing over the default window and
// persists its ranking score.
func (a *Aggregator) UpdateListingScore(ctx context.Context, listingID uint64) (ScoreResult, error) {
	p, err := a.Performance(ctx, listingID, DefaultWindowDays)
	if err != nil {
		return ScoreResult{}, err
	}
	if err := a.src.UpdateRankingScore(ctx, listingID, p.Metrics.PerformanceScore, p.Status, a.now()); err != nil {
		return ScoreResult{}, fmt.Errorf("persist score for listing %d: %w", listingID, err)
	}
	return ScoreResult{ListingID: listingID, Score: p.Metrics.PerformanceScore, Status: p.Status}, nil
}

// UpdateAllListingScores recomputes and persists every listing. A failing
// listing does not stop the rest; all failures are joined into the
// returned error.
func (a *Aggregator) UpdateAllListingScores(ctx context.Context) ([]ScoreResult, error) {
	listings, err := a.src.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	results := make([]ScoreResult, 0, len(listings))
	var errs []error
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := a.UpdateListingScore(ctx, l.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	a.logger.WithFields(logrus.Fields{
		"updated": len(results),
		"failed":  len(errs),
	}).Info("updated ranking scores")
	return results, errors.Join(errs...)
}

// LowPerformers returns listings scoring below threshold over windowDays,
// worst first. Listings whose snapshot cannot be computed are logged and
// skipped.
func (a *Aggregator) LowPerformers(ctx context.Context, threshold, windowDays int) ([]LowPerformer, error) {
	listings, err := a.src.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return a.Below(ctx, listings, threshold, windowDays), nil
}

// Below filters the given listings down to those under threshold, worst
// first.
func (a *Aggregator) Below(ctx context.Context, listings []model.Listing, threshold, windowDays int) []LowPerformer {
	var out []LowPerformer
	for _, l := range listings {
		p, err := a.Performance(ctx, l.ID, windowDays)
		if err != nil {
			a.logger.WithError(err).WithField("listing_id", l.ID).Warn("performance check failed")
			continue
		}
		if p.Metrics.PerformanceScore < threshold {
			out = append(out, LowPerformer{Listing: l, Performance: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Performance.Metrics.PerformanceScore < out[j].Performance.Metrics.PerformanceScore
	})
	return out
}

// ClearCache drops every cached snapshot.
func (a *Aggregator) ClearCache(ctx context.Context) { a.cache.Clear(ctx) }
