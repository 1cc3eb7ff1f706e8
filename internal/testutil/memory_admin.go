package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/repository"
)

// CreateListing stores l and sets its id.
func (s *MemoryStore) CreateListing(_ context.Context, l *model.Listing) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.RankingScore == 0 {
		l.RankingScore = model.DefaultRankingScore
	}
	l.ID = s.AddListing(*l)
	return nil
}

// GetCoupon returns a coupon by id.
func (s *MemoryStore) GetCoupon(_ context.Context, id uint64) (*model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCoupons returns every coupon, newest first.
func (s *MemoryStore) ListCoupons(_ context.Context) ([]model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// CreateCoupon stores c, rejecting a duplicate code.
func (s *MemoryStore) CreateCoupon(_ context.Context, c *model.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Code = model.NormalizeCode(c.Code)
	for _, other := range s.coupons {
		if other.Code == c.Code {
			return repository.ErrDuplicate
		}
	}
	c.ID = s.id()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	s.coupons[c.ID] = &cp
	return nil
}

// ToggleCoupon flips IsActive.
func (s *MemoryStore) ToggleCoupon(_ context.Context, id uint64) (*model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.IsActive = !c.IsActive
	cp := *c
	return &cp, nil
}

// DeleteCoupon removes a coupon and clears booking references to it.
func (s *MemoryStore) DeleteCoupon(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.coupons, id)
	for _, b := range s.bookings {
		if b.CouponID != nil && *b.CouponID == id {
			b.CouponID = nil
		}
	}
	return nil
}

// GetAnalytics returns the counters of a listing.
func (s *MemoryStore) GetAnalytics(_ context.Context, listingID uint64) (model.Analytics, error) {
	return s.Analytics(listingID), nil
}

// UpdateReviewStats overwrites the rating aggregates.
func (s *MemoryStore) UpdateReviewStats(_ context.Context, listingID uint64, average float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.analyticsLocked(listingID)
	a.AverageRating = average
	a.ReviewsCount = int64(count)
	return nil
}

// Overview sums analytics like the MySQL repository: nil means every
// listing with a row.
func (s *MemoryStore) Overview(_ context.Context, listingIDs []uint64) (model.Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*model.Analytics
	if listingIDs == nil {
		for _, a := range s.analytics {
			rows = append(rows, a)
		}
	} else {
		for _, id := range listingIDs {
			if a, ok := s.analytics[id]; ok {
				rows = append(rows, a)
			}
		}
	}
	var (
		o       model.Overview
		weight  float64
		reviews int64
	)
	for _, a := range rows {
		o.TotalViews += a.ViewsCount
		o.TotalBookings += a.BookingsCount
		o.TotalRevenue += a.Revenue
		weight += a.AverageRating * float64(a.ReviewsCount)
		reviews += a.ReviewsCount
	}
	if reviews > 0 {
		o.AverageRating = weight / float64(reviews)
	}
	o.Listings = len(rows)
	if listingIDs != nil {
		o.Listings = len(listingIDs)
	}
	return o, nil
}

// CreateInteraction appends to the interaction log.
func (s *MemoryStore) CreateInteraction(_ context.Context, in *model.SearchInteraction) error {
	if err := s.Errs["CreateInteraction"]; err != nil {
		return err
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	s.AddInteraction(*in)
	return nil
}

// Interactions returns a copy of the interaction log.
func (s *MemoryStore) Interactions() []model.SearchInteraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SearchInteraction(nil), s.interactions...)
}

// AggregateInteractions groups the log per listing, highest total reward
// first.
func (s *MemoryStore) AggregateInteractions(_ context.Context, limit int) ([]model.InteractionStats, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	byListing := map[uint64]*model.InteractionStats{}
	for _, i := range s.interactions {
		st, ok := byListing[i.ListingID]
		if !ok {
			st = &model.InteractionStats{ListingID: i.ListingID}
			byListing[i.ListingID] = st
		}
		switch i.Action {
		case model.ActionView:
			st.Views++
		case model.ActionClick:
			st.Clicks++
		case model.ActionBook:
			st.Bookings++
		}
		st.TotalReward += i.Reward
	}
	s.mu.Unlock()

	out := make([]model.InteractionStats, 0, len(byListing))
	for _, st := range byListing {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalReward != out[j].TotalReward {
			return out[i].TotalReward > out[j].TotalReward
		}
		return out[i].ListingID < out[j].ListingID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateReview stores a review and sets its id.
func (s *MemoryStore) CreateReview(_ context.Context, rv *model.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	rv.ID = s.id()
	s.reviews = append(s.reviews, *rv)
	return nil
}

// CountByAuthorSince counts an author's reviews of a listing in any status.
func (s *MemoryStore) CountByAuthorSince(_ context.Context, listingID, authorID uint64, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reviews {
		if r.ListingID == listingID && r.AuthorID == authorID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// CountApprovedSince counts a listing's approved reviews.
func (s *MemoryStore) CountApprovedSince(ctx context.Context, listingID uint64, since time.Time) (int, error) {
	ratings, err := s.ApprovedRatings(ctx, listingID, since)
	return len(ratings), err
}

// ReviewsByListing returns approved reviews, newest first.
func (s *MemoryStore) ReviewsByListing(_ context.Context, listingID uint64) ([]model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Review
	for _, r := range s.reviews {
		if r.ListingID == listingID && r.Status == model.ReviewApproved {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Reviews returns a copy of every stored review.
func (s *MemoryStore) Reviews() []model.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Review(nil), s.reviews...)
}
