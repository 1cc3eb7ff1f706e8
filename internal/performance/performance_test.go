package performance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/testutil"
)

var now = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func TestComputeMetrics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		counts Counts
		score  int
		status model.PerformanceStatus
	}{
		{"empty", Counts{}, 0, model.StatusCritical},
		{"no_views_rating_only", Counts{Ratings: []int{5}}, 15, model.StatusCritical},
		{"no_views_rating_and_bookings", Counts{Bookings: 3, Ratings: []int{4}}, 15, model.StatusCritical},
		{"typical", Counts{Views: 100, Clicks: 10, Bookings: 2, Ratings: []int{5, 4}}, 26, model.StatusPoor},
		{"saturated", Counts{Views: 10, Clicks: 10, Bookings: 20, Ratings: []int{5}}, 100, model.StatusExcellent},
	}
	for _, tc := range cases {
		m := ComputeMetrics(tc.counts)
		if m.PerformanceScore != tc.score {
			t.Fatalf("%s: score = %d, want %d", tc.name, m.PerformanceScore, tc.score)
		}
		if got := StatusFor(m.PerformanceScore); got != tc.status {
			t.Fatalf("%s: status = %s, want %s", tc.name, got, tc.status)
		}
	}
}

func TestZeroViewsZeroRates(t *testing.T) {
	t.Parallel()

	m := ComputeMetrics(Counts{Views: 0, Clicks: 0, Bookings: 1, Ratings: []int{3}})
	if m.ClickThroughRate != 0 || m.ConversionRate != 0 || m.OverallEngagement != 0 {
		t.Fatalf("rates should be zero without views: %+v", m)
	}
	// 0.15*60 + 0.10*10
	if m.PerformanceScore != 10 {
		t.Fatalf("score = %d, want 10", m.PerformanceScore)
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	t.Parallel()

	for views := 0; views <= 50; views += 7 {
		for clicks := 0; clicks <= 60; clicks += 9 {
			for bookings := 0; bookings <= 40; bookings += 6 {
				for rating := 0; rating <= 5; rating++ {
					m := ComputeMetrics(Counts{Views: views, Clicks: clicks, Bookings: bookings, Ratings: []int{rating}})
					if m.PerformanceScore < 0 || m.PerformanceScore > 100 {
						t.Fatalf("score %d out of range for %d/%d/%d/%d", m.PerformanceScore, views, clicks, bookings, rating)
					}
				}
			}
		}
	}
}

func TestStatusForIsMonotonic(t *testing.T) {
	t.Parallel()

	rank := map[model.PerformanceStatus]int{
		model.StatusCritical:  0,
		model.StatusPoor:      1,
		model.StatusAverage:   2,
		model.StatusGood:      3,
		model.StatusExcellent: 4,
	}
	prev := rank[StatusFor(0)]
	for s := 1; s <= 100; s++ {
		cur := rank[StatusFor(s)]
		if cur < prev {
			t.Fatalf("status decreased at score %d", s)
		}
		prev = cur
	}
	boundaries := map[int]model.PerformanceStatus{19: model.StatusCritical, 20: model.StatusPoor, 40: model.StatusAverage, 60: model.StatusGood, 80: model.StatusExcellent}
	for score, want := range boundaries {
		if got := StatusFor(score); got != want {
			t.Fatalf("StatusFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestRecommendations(t *testing.T) {
	t.Parallel()

	weak := model.Metrics{}
	if recs := Recommendations(model.StatusCritical, weak); len(recs) != 4 {
		t.Fatalf("critical listing got %d tips, want 4", len(recs))
	}
	healthy := model.Metrics{TotalViews: 500, ClickThroughRate: 0.2, AvgRating: 4.8, ConversionRate: 0.3}
	if recs := Recommendations(model.StatusPoor, healthy); len(recs) != 0 {
		t.Fatalf("poor listing with healthy metrics got %v", recs)
	}
	recs := Recommendations(model.StatusAverage, weak)
	if len(recs) != 1 || recs[0].Type != "optimization" {
		t.Fatalf("average listing got %v", recs)
	}
	if recs := Recommendations(model.StatusExcellent, weak); len(recs) != 0 {
		t.Fatalf("excellent listing got %v", recs)
	}
}

func seed(store *testutil.MemoryStore, ownerID uint64, views, clicks int, ratings ...int) uint64 {
	id := store.AddListing(model.Listing{OwnerID: ownerID, Title: "Listing", NightlyPrice: 100})
	for i := 0; i < views; i++ {
		store.AddInteraction(model.SearchInteraction{ListingID: id, Action: model.ActionView, CreatedAt: now.Add(-time.Hour)})
	}
	for i := 0; i < clicks; i++ {
		store.AddInteraction(model.SearchInteraction{ListingID: id, Action: model.ActionClick, CreatedAt: now.Add(-time.Hour)})
	}
	for _, r := range ratings {
		store.AddReview(model.Review{ListingID: id, Rating: r, Status: model.ReviewApproved, CreatedAt: now.Add(-time.Hour)})
	}
	return id
}

func TestAggregatorWindowAndFilters(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore()
	agg := NewAggregator(store, testutil.QuietLogger(), WithClock(func() time.Time { return now }))

	id := seed(store, 1, 20, 4, 4)
	// Outside the window, a pending review, and a booking in another status.
	store.AddInteraction(model.SearchInteraction{ListingID: id, Action: model.ActionView, CreatedAt: now.AddDate(0, 0, -40)})
	store.AddReview(model.Review{ListingID: id, Rating: 1, Status: model.ReviewPending, CreatedAt: now})
	store.AddBooking(model.Booking{ListingID: id, Status: model.BookingCancelled, BookedAt: now.Add(-time.Hour), Pricing: model.Pricing{Total: 900}})

	p, err := agg.Performance(context.Background(), id, 30)
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}
	m := p.Metrics
	if m.TotalViews != 20 || m.TotalClicks != 4 || m.TotalBookings != 1 || m.TotalReviews != 2 || m.AvgRating != 2.5 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if m.ClickThroughRate != 0.2 || m.ConversionRate != 0.25 || m.OverallEngagement != 0.25 {
		t.Fatalf("unexpected rates %+v", m)
	}
	if p.WindowDays != 30 || !p.LastUpdated.Equal(now) {
		t.Fatalf("unexpected snapshot header %+v", p)
	}

	if p, err := agg.Performance(context.Background(), id, 0); err != nil || p.WindowDays != DefaultWindowDays {
		t.Fatalf("default window: %+v, %v", p, err)
	}
}

func TestAggregatorCachesPerWindow(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore()
	agg := NewAggregator(store, testutil.QuietLogger(), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	id := seed(store, 1, 5, 0)

	first, err := agg.Performance(ctx, id, 30)
	if err != nil {
		t.Fatal(err)
	}
	store.AddInteraction(model.SearchInteraction{ListingID: id, Action: model.ActionView, CreatedAt: now})

	cached, _ := agg.Performance(ctx, id, 30)
	if cached.Metrics.TotalViews != first.Metrics.TotalViews {
		t.Fatalf("expected cached snapshot, got %d views", cached.Metrics.TotalViews)
	}
	other, _ := agg.Performance(ctx, id, 7)
	if other.Metrics.TotalViews != 6 {
		t.Fatalf("different window should recompute, got %d views", other.Metrics.TotalViews)
	}

	agg.ClearCache(ctx)
	fresh, _ := agg.Performance(ctx, id, 30)
	if fresh.Metrics.TotalViews != 6 {
		t.Fatalf("cleared cache should recompute, got %d views", fresh.Metrics.TotalViews)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()
	clock := testutil.NewClock(now)
	c := NewMemoryCache()
	c.now = clock.Now
	ctx := context.Background()

	c.Set(ctx, CacheKey(1, 30), &model.Performance{ListingID: 1}, DefaultCacheTTL)
	if _, ok := c.Get(ctx, "1_30"); !ok {
		t.Fatal("expected hit")
	}
	clock.Advance(DefaultCacheTTL - time.Second)
	if _, ok := c.Get(ctx, "1_30"); !ok {
		t.Fatal("expected hit before expiry")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, "1_30"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestMemoryCacheReturnsIndependentCopies(t *testing.T) {
	t.Parallel()
	c := NewMemoryCache()
	ctx := context.Background()

	in := &model.Performance{ListingID: 1, Recommendations: []model.Recommendation{{Type: "urgent"}}}
	c.Set(ctx, "k", in, DefaultCacheTTL)
	in.Recommendations[0].Type = "changed"

	got, ok := c.Get(ctx, "k")
	if !ok || got.Recommendations[0].Type != "urgent" {
		t.Fatalf("cached entry changed through the caller's slice: %+v", got)
	}
	got.Recommendations[0].Type = "edited"
	again, _ := c.Get(ctx, "k")
	if again.Recommendations[0].Type != "urgent" {
		t.Fatalf("cached entry changed through a returned slice: %+v", again)
	}
}

func TestUpdateAllListingScoresCapturesFailures(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore()
	agg := NewAggregator(store, testutil.QuietLogger(), WithClock(func() time.Time { return now }))

	good := seed(store, 1, 10, 10, 5)
	bad := seed(store, 1, 1, 0)
	other := seed(store, 2, 0, 0, 5)
	boom := errors.New("boom")
	store.ListingErrs[bad] = boom

	results, err := agg.UpdateAllListingScores(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error containing boom, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}

	l, _ := store.GetListing(context.Background(), good)
	if l.LastRankingUpdate == nil || l.RankingScore != results[0].Score || l.PerformanceStatus != results[0].Status {
		t.Fatalf("score not persisted: %+v", l)
	}
	l, _ = store.GetListing(context.Background(), other)
	if l.RankingScore != 15 {
		t.Fatalf("other listing score = %d", l.RankingScore)
	}
	l, _ = store.GetListing(context.Background(), bad)
	if l.LastRankingUpdate != nil {
		t.Fatal("failing listing should not be updated")
	}
}

func TestLowPerformersSortedAscending(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore()
	agg := NewAggregator(store, testutil.QuietLogger(), WithClock(func() time.Time { return now }))

	mid := seed(store, 1, 0, 0, 5)    // 15
	worst := seed(store, 1, 0, 0)     // 0
	seed(store, 1, 10, 10, 5)         // 60
	broken := seed(store, 1, 0, 0, 2) // skipped
	store.ListingErrs[broken] = errors.New("boom")

	low, err := agg.LowPerformers(context.Background(), 40, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(low) != 2 || low[0].Listing.ID != worst || low[1].Listing.ID != mid {
		t.Fatalf("unexpected low performers %+v", low)
	}
}

type countingScorer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (s *countingScorer) UpdateAllListingScores(context.Context) ([]ScoreResult, error) {
	if s.calls.Add(1) == 1 {
		close(s.started)
		<-s.release
	}
	return nil, errors.New("partial failure")
}

func TestRefresherCoalescesAndSurvivesErrors(t *testing.T) {
	t.Parallel()
	scorer := &countingScorer{started: make(chan struct{}), release: make(chan struct{})}
	r := NewRefresher(scorer, testutil.QuietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	if !r.Enqueue() {
		t.Fatal("first enqueue should be accepted")
	}
	<-scorer.started
	// One more may queue behind the running job; the rest collapse.
	if !r.Enqueue() {
		t.Fatal("second enqueue should queue behind the running refresh")
	}
	if r.Enqueue() {
		t.Fatal("third enqueue should coalesce")
	}
	close(scorer.release)

	deadline := time.After(2 * time.Second)
	for scorer.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d", scorer.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := r.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := scorer.calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}
