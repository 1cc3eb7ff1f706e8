package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/pricing"
	"github.com/iliyamo/stay-reservation/internal/testutil"
)

const (
	hostID  uint64 = 100
	guestID uint64 = 200
)

var day0 = time.Date(2025, 7, 1, 15, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day0.AddDate(0, 0, n) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []uint64
	err    error
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, b *model.Booking, _ *model.Listing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, b.ID)
	return p.err
}

type fixture struct {
	store     *testutil.MemoryStore
	clock     *testutil.Clock
	publisher *recordingPublisher
	svc       *Service
	listingID uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewMemoryStore()
	clock := testutil.NewClock(day(-10))
	pub := &recordingPublisher{}
	listingID := store.AddListing(model.Listing{OwnerID: hostID, Title: "Cabin", NightlyPrice: 1000})
	svc := NewService(store, testutil.QuietLogger(),
		WithClock(clock.Now),
		WithAnalytics(store),
		WithPublisher(pub),
	)
	return &fixture{store: store, clock: clock, publisher: pub, svc: svc, listingID: listingID}
}

func (f *fixture) request(in, out int) Request {
	return Request{
		ListingID: f.listingID,
		GuestID:   guestID,
		CheckIn:   day(in),
		CheckOut:  day(out),
		Guests:    model.Guests{Adults: 2},
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		a, b, c, d int
		want       bool
	}{
		{"identical", 0, 3, 0, 3, true},
		{"partial_right", 0, 3, 1, 4, true},
		{"partial_left", 1, 4, 0, 3, true},
		{"contained", 0, 10, 2, 3, true},
		{"back_to_back", 0, 3, 3, 5, false},
		{"before", 5, 7, 0, 3, false},
	}
	for _, tc := range cases {
		if got := Overlaps(day(tc.a), day(tc.b), day(tc.c), day(tc.d)); got != tc.want {
			t.Fatalf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFindConflictIgnoresInactive(t *testing.T) {
	t.Parallel()

	existing := []model.Booking{
		{ID: 1, CheckIn: day(0), CheckOut: day(3), Status: model.BookingCancelled},
		{ID: 2, CheckIn: day(0), CheckOut: day(3), Status: model.BookingCompleted},
	}
	if c := FindConflict(existing, day(1), day(2)); c != nil {
		t.Fatalf("inactive booking %d reported as conflict", c.ID)
	}
	existing = append(existing, model.Booking{ID: 3, CheckIn: day(-30), CheckOut: day(2), Status: model.BookingPending})
	if c := FindConflict(existing, day(1), day(2)); c == nil || c.ID != 3 {
		t.Fatalf("expected pending booking 3 to conflict, got %+v", c)
	}
}

func TestCreateConfirmsAndPrices(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), f.request(0, 3))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != model.BookingConfirmed || b.PaymentStatus != model.PaymentPaid {
		t.Fatalf("unexpected status %s/%s", b.Status, b.PaymentStatus)
	}
	if b.ConfirmedAt == nil || !b.ConfirmedAt.Equal(day(-10)) {
		t.Fatalf("confirmedAt not stamped: %v", b.ConfirmedAt)
	}
	if b.Pricing.BasePrice != 3000 || b.Pricing.Taxes != 540 || b.Pricing.Total != 4240 {
		t.Fatalf("unexpected pricing %+v", b.Pricing)
	}

	a := f.store.Analytics(f.listingID)
	if a.BookingsCount != 1 || a.Revenue != 4240 {
		t.Fatalf("analytics not recorded: %+v", a)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0] != b.ID {
		t.Fatalf("expected one published event, got %v", f.publisher.events)
	}
}

func TestCreateRejectsOverlapButAllowsBackToBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.request(0, 3)); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.request(1, 4)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.request(3, 5)); err != nil {
		t.Fatalf("back-to-back booking rejected: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.request(3, 3)); !errors.Is(err, pricing.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	req := f.request(0, 2)
	req.Guests = model.Guests{Adults: 0, Children: 2}
	if _, err := f.svc.Create(ctx, req); !errors.Is(err, model.ErrInvalidGuests) {
		t.Fatalf("expected ErrInvalidGuests, got %v", err)
	}
	req = f.request(0, 2)
	req.ListingID = 999
	if _, err := f.svc.Create(ctx, req); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
	if len(f.store.Bookings()) != 0 {
		t.Fatal("rejected requests must not persist bookings")
	}
}

func TestCreateOwnListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	req := f.request(0, 2)
	req.GuestID = hostID
	if _, err := f.svc.Create(ctx, req); !errors.Is(err, ErrOwnBooking) {
		t.Fatalf("expected ErrOwnBooking, got %v", err)
	}

	// Availability is checked before ownership.
	if _, err := f.svc.Create(ctx, f.request(0, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Create(ctx, req); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict before ErrOwnBooking, got %v", err)
	}
}

func TestCreateWithCoupon(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	couponID := f.store.AddCoupon(model.Coupon{Code: "summer10", DiscountType: model.DiscountPercent, Amount: 10, IsActive: true})

	req := f.request(0, 3)
	req.CouponCode = " Summer10 "
	b, err := f.svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Pricing.Discount != 300 || b.Pricing.Total != 3940 {
		t.Fatalf("unexpected pricing %+v", b.Pricing)
	}
	if b.CouponID == nil || *b.CouponID != couponID {
		t.Fatalf("coupon not attached: %v", b.CouponID)
	}
	if uses := f.store.Coupon(couponID).Uses; uses != 1 {
		t.Fatalf("uses = %d, want 1", uses)
	}
}

func TestCreateInvalidCouponAbortsBooking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	expired := day(-20)
	f.store.AddCoupon(model.Coupon{Code: "OLD", DiscountType: model.DiscountFixed, Amount: 50, IsActive: true, ExpiresAt: &expired})
	usedUp := f.store.AddCoupon(model.Coupon{Code: "GONE", DiscountType: model.DiscountFixed, Amount: 50, IsActive: true, MaxUses: 2, Uses: 2})
	f.store.AddCoupon(model.Coupon{Code: "OFF", DiscountType: model.DiscountFixed, Amount: 50})

	for _, code := range []string{"NOPE", "old", "GONE", "off"} {
		req := f.request(0, 3)
		req.CouponCode = code
		if _, err := f.svc.Create(ctx, req); !errors.Is(err, ErrInvalidCoupon) {
			t.Fatalf("%s: expected ErrInvalidCoupon, got %v", code, err)
		}
	}
	if len(f.store.Bookings()) != 0 {
		t.Fatal("invalid coupon must abort the booking")
	}
	if uses := f.store.Coupon(usedUp).Uses; uses != 2 {
		t.Fatalf("exhausted coupon uses changed to %d", uses)
	}
}

func TestQuoteHasNoSideEffectsAndMatchesCommit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	couponID := f.store.AddCoupon(model.Coupon{Code: "FLAT", DiscountType: model.DiscountFixed, Amount: 250, IsActive: true, MaxUses: 5})

	req := f.request(2, 9)
	req.CouponCode = "flat"
	q, err := f.svc.Quote(ctx, req)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.CouponApplied || !q.Available || q.CouponCode != "FLAT" {
		t.Fatalf("unexpected quote %+v", q)
	}
	if _, err := f.svc.Quote(ctx, req); err != nil {
		t.Fatal(err)
	}
	if uses := f.store.Coupon(couponID).Uses; uses != 0 {
		t.Fatalf("quote redeemed coupon: uses = %d", uses)
	}
	if len(f.store.Bookings()) != 0 {
		t.Fatal("quote persisted a booking")
	}

	b, err := f.svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Pricing != q.Pricing {
		t.Fatalf("commit pricing %+v differs from quote %+v", b.Pricing, q.Pricing)
	}

	q, err = f.svc.Quote(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if q.Available {
		t.Fatal("quote should report booked dates as unavailable")
	}
}

func TestQuoteReportsInvalidCoupon(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := f.request(0, 3)
	req.CouponCode = "missing"
	q, err := f.svc.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.CouponApplied || q.CouponError == "" || q.Pricing.Discount != 0 || q.Pricing.Total != 4240 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

type failingLister struct{}

func (failingLister) ActiveBookingsForListing(context.Context, uint64) ([]model.Booking, error) {
	return nil, errors.New("db down")
}

func TestQuoteChecksAvailabilityBeforePricing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.conflicts = NewConflictDetector(failingLister{})

	req := f.request(0, 3)
	req.ListingID = 9999
	_, err := f.svc.Quote(context.Background(), req)
	if err == nil || errors.Is(err, ErrListingNotFound) {
		t.Fatalf("Quote error = %v, want availability failure", err)
	}
}

func TestCreateSurvivesPublishAndAnalyticsFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	f.store.Errs["RecordBooking"] = errors.New("db down")

	if _, err := f.svc.Create(context.Background(), f.request(0, 3)); err != nil {
		t.Fatalf("best-effort failures leaked: %v", err)
	}
}

func TestConcurrentCreateAdmitsOneBooking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			req := f.request(offset%2, 3+offset%2)
			req.GuestID = guestID + uint64(offset)
			_, err := f.svc.Create(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("successes=%d conflicts=%d", successes, conflicts)
	}
}

func TestConcurrentCouponRedemptionRespectsMaxUses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	couponID := f.store.AddCoupon(model.Coupon{Code: "LIMITED", DiscountType: model.DiscountPercent, Amount: 5, IsActive: true, MaxUses: 3})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := f.request(i*5, i*5+2)
			req.CouponCode = "LIMITED"
			_, _ = f.svc.Create(context.Background(), req)
		}(i)
	}
	wg.Wait()

	if uses := f.store.Coupon(couponID).Uses; uses != 3 {
		t.Fatalf("uses = %d, want 3", uses)
	}
	withCoupon := 0
	for _, b := range f.store.Bookings() {
		if b.CouponID != nil {
			withCoupon++
		}
	}
	if withCoupon != 3 {
		t.Fatalf("bookings with coupon = %d, want 3", withCoupon)
	}
}

func TestGuestCancelPolicyWindow(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		before  time.Duration
		wantErr error
	}{
		{"ten_hours_before", 10 * time.Hour, ErrPolicyWindow},
		{"exactly_24h", 24 * time.Hour, nil},
		{"thirty_hours_before", 30 * time.Hour, nil},
		{"after_checkin", -time.Hour, ErrPolicyWindow},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()
			b, err := f.svc.Create(ctx, f.request(0, 3))
			if err != nil {
				t.Fatal(err)
			}
			f.clock.Set(b.CheckIn.Add(-tc.before))

			got, err := f.svc.Cancel(ctx, b.ID, guestID, RoleGuest)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Cancel error = %v, want %v", err, tc.wantErr)
			}
			stored, _ := f.svc.Get(ctx, b.ID)
			if tc.wantErr != nil {
				if stored.Status != model.BookingConfirmed {
					t.Fatalf("rejected cancel changed status to %s", stored.Status)
				}
				return
			}
			if got.Status != model.BookingCancelled || got.CancellationReason != ReasonGuestCancelled || got.CancelledAt == nil {
				t.Fatalf("unexpected booking %+v", got)
			}
			if stored.Status != model.BookingCancelled {
				t.Fatalf("stored status = %s", stored.Status)
			}
		})
	}
}

func TestCancelAuthorizationAndState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.request(0, 3))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Cancel(ctx, b.ID, 999, RoleGuest); !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrNotGuest) {
		t.Fatalf("expected ErrNotGuest, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, b.ID, guestID, RoleHost); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, 12345, guestID, RoleGuest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, b.ID, guestID, Role("admin")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Hosts have no notice period.
	f.clock.Set(b.CheckIn.Add(-2 * time.Hour))
	got, err := f.svc.Cancel(ctx, b.ID, hostID, RoleHost)
	if err != nil {
		t.Fatalf("host cancel: %v", err)
	}
	if got.CancellationReason != ReasonHostCancelled {
		t.Fatalf("reason = %q", got.CancellationReason)
	}

	if _, err := f.svc.Cancel(ctx, b.ID, hostID, RoleHost); !errors.Is(err, ErrWrongState) {
		t.Fatalf("expected ErrWrongState on second cancel, got %v", err)
	}

	// Cancelled dates are free again.
	if _, err := f.svc.Create(ctx, f.request(0, 3)); err != nil {
		t.Fatalf("rebooking cancelled dates: %v", err)
	}
}

func TestCompleteAndRefund(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.request(0, 2))
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Create(ctx, f.request(5, 7))
	if err != nil {
		t.Fatal(err)
	}

	done, err := f.svc.Complete(ctx, first.ID)
	if err != nil || done.Status != model.BookingCompleted {
		t.Fatalf("Complete = %+v, %v", done, err)
	}
	if _, err := f.svc.Refund(ctx, first.ID); !errors.Is(err, ErrWrongState) {
		t.Fatalf("refund of completed booking: %v", err)
	}

	refunded, err := f.svc.Refund(ctx, second.ID)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunded.Status != model.BookingRefunded || refunded.PaymentStatus != model.PaymentRefunded {
		t.Fatalf("unexpected refund result %+v", refunded)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := map[string]bool{
		"pending>confirmed":   true,
		"confirmed>cancelled": true,
		"confirmed>completed": true,
		"confirmed>refunded":  true,
	}
	all := []model.BookingStatus{model.BookingPending, model.BookingConfirmed, model.BookingCancelled, model.BookingCompleted, model.BookingRefunded}
	for _, from := range all {
		for _, to := range all {
			key := fmt.Sprintf("%s>%s", from, to)
			if got := CanTransition(from, to); got != allowed[key] {
				t.Fatalf("CanTransition(%s) = %v", key, got)
			}
		}
	}
}

func TestTripsAndHostBookings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.request(0, 2)); err != nil {
		t.Fatal(err)
	}
	trips, err := f.svc.Trips(ctx, guestID)
	if err != nil || len(trips) != 1 {
		t.Fatalf("Trips = %v, %v", trips, err)
	}
	hosted, err := f.svc.HostBookings(ctx, hostID)
	if err != nil || len(hosted) != 1 {
		t.Fatalf("HostBookings = %v, %v", hosted, err)
	}
	if none, _ := f.svc.Trips(ctx, hostID); len(none) != 0 {
		t.Fatalf("host has trips: %v", none)
	}
}
