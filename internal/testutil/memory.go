package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/repository"
)

// MemoryStore is an in-memory stand-in for the MySQL repositories. It
// mirrors their contracts, including the locked overlap re-check and the
// conditional coupon redemption in CommitBooking.
type MemoryStore struct {
	mu           sync.Mutex
	nextID       uint64
	listings     map[uint64]*model.Listing
	listingOrder []uint64
	bookings     map[uint64]*model.Booking
	coupons      map[uint64]*model.Coupon
	interactions []model.SearchInteraction
	reviews      []model.Review
	analytics    map[uint64]*model.Analytics

	// Errs injects failures by method name, e.g. "GetListing".
	Errs map[string]error
	// ListingErrs injects per-listing failures into the performance reads.
	ListingErrs map[uint64]error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings:    map[uint64]*model.Listing{},
		bookings:    map[uint64]*model.Booking{},
		coupons:     map[uint64]*model.Coupon{},
		analytics:   map[uint64]*model.Analytics{},
		Errs:        map[string]error{},
		ListingErrs: map[uint64]error{},
	}
}

func (s *MemoryStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) fail(method string) error {
	return s.Errs[method]
}

// AddListing stores l and returns its id.
func (s *MemoryStore) AddListing(l model.Listing) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.id()
	} else if l.ID > s.nextID {
		s.nextID = l.ID
	}
	s.listings[l.ID] = &l
	s.listingOrder = append(s.listingOrder, l.ID)
	return l.ID
}

// AddCoupon stores c with a normalized code and returns its id.
func (s *MemoryStore) AddCoupon(c model.Coupon) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	c.Code = model.NormalizeCode(c.Code)
	s.coupons[c.ID] = &c
	return c.ID
}

// AddBooking stores b as-is, bypassing the overlap check.
func (s *MemoryStore) AddBooking(b model.Booking) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	s.bookings[b.ID] = &b
	return b.ID
}

// AddInteraction appends to the interaction log.
func (s *MemoryStore) AddInteraction(i model.SearchInteraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID = s.id()
	if i.Reward == 0 {
		i.Reward = i.Action.Reward()
	}
	s.interactions = append(s.interactions, i)
}

// AddReview appends a review.
func (s *MemoryStore) AddReview(r model.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.reviews = append(s.reviews, r)
}

// Coupon returns a copy of the coupon with the given id.
func (s *MemoryStore) Coupon(id uint64) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.coupons[id]
}

// Analytics returns a copy of the analytics row for listingID.
func (s *MemoryStore) Analytics(listingID uint64) model.Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.analytics[listingID]; ok {
		return *a
	}
	return model.Analytics{ListingID: listingID}
}

// Bookings returns copies of all stored bookings ordered by id.
func (s *MemoryStore) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetListing implements booking.Store.
func (s *MemoryStore) GetListing(_ context.Context, id uint64) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetListing"); err != nil {
		return nil, err
	}
	l, ok := s.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// ListListings implements performance.Source.
func (s *MemoryStore) ListListings(_ context.Context) ([]model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListListings"); err != nil {
		return nil, err
	}
	out := make([]model.Listing, 0, len(s.listingOrder))
	for _, id := range s.listingOrder {
		out = append(out, *s.listings[id])
	}
	return out, nil
}

// ListingsByOwner returns the listings owned by ownerID in insert order.
func (s *MemoryStore) ListingsByOwner(_ context.Context, ownerID uint64) ([]model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Listing
	for _, id := range s.listingOrder {
		if l := s.listings[id]; l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// UpdateRankingScore implements performance.Source.
func (s *MemoryStore) UpdateRankingScore(_ context.Context, listingID uint64, score int, status model.PerformanceStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ListingErrs[listingID]; err != nil {
		return err
	}
	l, ok := s.listings[listingID]
	if !ok {
		return repository.ErrNotFound
	}
	l.RankingScore = score
	l.PerformanceStatus = status
	t := at
	l.LastRankingUpdate = &t
	return nil
}

// ActiveBookingsForListing implements booking.BookingLister.
func (s *MemoryStore) ActiveBookingsForListing(_ context.Context, listingID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ActiveBookingsForListing"); err != nil {
		return nil, err
	}
	return s.activeLocked(listingID), nil
}

func (s *MemoryStore) activeLocked(listingID uint64) []model.Booking {
	var out []model.Booking
	for _, b := range s.bookings {
		if b.ListingID == listingID && b.Status.Active() {
			out = append(out, *b)
		}
	}
	return out
}

// FindCouponByCode implements booking.Store.
func (s *MemoryStore) FindCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code = model.NormalizeCode(code)
	for _, c := range s.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CommitBooking implements booking.Store. The whole method runs under the
// store lock, which plays the role of the listing row lock.
func (s *MemoryStore) CommitBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CommitBooking"); err != nil {
		return err
	}
	if _, ok := s.listings[b.ListingID]; !ok {
		return repository.ErrNotFound
	}
	for _, other := range s.activeLocked(b.ListingID) {
		if other.CheckIn.Before(b.CheckOut) && b.CheckIn.Before(other.CheckOut) {
			return repository.ErrConflict
		}
	}
	if b.CouponID != nil {
		c, ok := s.coupons[*b.CouponID]
		if !ok || !c.IsValidForUse(b.BookedAt) {
			return repository.ErrCouponExhausted
		}
		c.Uses++
	}
	b.ID = s.id()
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

// GetBooking implements booking.Store.
func (s *MemoryStore) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// UpdateBookingStatus implements booking.Store as a compare-and-swap on
// the current status.
func (s *MemoryStore) UpdateBookingStatus(_ context.Context, id uint64, change model.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != change.From {
		return repository.ErrConflict
	}
	b.Apply(change)
	return nil
}

// BookingsByGuest implements booking.Store.
func (s *MemoryStore) BookingsByGuest(_ context.Context, guestID uint64) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range s.Bookings() {
		if b.GuestID == guestID {
			out = append(out, b)
		}
	}
	return out, nil
}

// BookingsByHost implements booking.Store.
func (s *MemoryStore) BookingsByHost(_ context.Context, hostID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	owned := map[uint64]bool{}
	for id, l := range s.listings {
		if l.OwnerID == hostID {
			owned[id] = true
		}
	}
	s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.Bookings() {
		if owned[b.ListingID] {
			out = append(out, b)
		}
	}
	return out, nil
}

// RecordBooking implements booking.AnalyticsRecorder.
func (s *MemoryStore) RecordBooking(_ context.Context, listingID uint64, revenue float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecordBooking"); err != nil {
		return err
	}
	a := s.analyticsLocked(listingID)
	a.BookingsCount++
	a.Revenue += revenue
	return nil
}

// IncrementViews bumps the view counter of a listing.
func (s *MemoryStore) IncrementViews(_ context.Context, listingID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyticsLocked(listingID).ViewsCount++
	return nil
}

func (s *MemoryStore) analyticsLocked(listingID uint64) *model.Analytics {
	a, ok := s.analytics[listingID]
	if !ok {
		a = &model.Analytics{ListingID: listingID}
		s.analytics[listingID] = a
	}
	return a
}

// InteractionCounts implements performance.Source.
func (s *MemoryStore) InteractionCounts(_ context.Context, listingID uint64, since time.Time) (views, clicks int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ListingErrs[listingID]; err != nil {
		return 0, 0, err
	}
	for _, i := range s.interactions {
		if i.ListingID != listingID || i.CreatedAt.Before(since) {
			continue
		}
		switch i.Action {
		case model.ActionView:
			views++
		case model.ActionClick:
			clicks++
		}
	}
	return views, clicks, nil
}

// BookingStats implements performance.Source. Bookings in every status
// count, matched on BookedAt.
func (s *MemoryStore) BookingStats(_ context.Context, listingID uint64, since time.Time) (int, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		n   int
		rev float64
	)
	for _, b := range s.bookings {
		if b.ListingID == listingID && !b.BookedAt.Before(since) {
			n++
			rev += b.Pricing.Total
		}
	}
	return n, rev, nil
}

// WindowRatings implements performance.Source.
func (s *MemoryStore) WindowRatings(_ context.Context, listingID uint64, since time.Time) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, r := range s.reviews {
		if r.ListingID == listingID && !r.CreatedAt.Before(since) {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}

// ApprovedRatings returns approved ratings since the given time.
func (s *MemoryStore) ApprovedRatings(_ context.Context, listingID uint64, since time.Time) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, r := range s.reviews {
		if r.ListingID == listingID && r.Status == model.ReviewApproved && !r.CreatedAt.Before(since) {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}
