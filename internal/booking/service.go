// Package booking owns the reservation flow: availability checks, quote
// and commit pricing, coupon redemption and the status lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/pricing"
	"github.com/iliyamo/stay-reservation/internal/repository"
)

// Store is the persistence the service needs. CommitBooking must lock the
// listing, re-check overlaps, redeem the coupon and insert the booking as
// one unit, returning repository.ErrConflict or
// repository.ErrCouponExhausted when it loses a race.
type Store interface {
	BookingLister
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	FindCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	CommitBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, change model.StatusChange) error
	BookingsByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error)
	BookingsByHost(ctx context.Context, hostID uint64) ([]model.Booking, error)
}

// AnalyticsRecorder accumulates per-listing booking counters.
type AnalyticsRecorder interface {
	RecordBooking(ctx context.Context, listingID uint64, revenue float64) error
}

// Publisher announces confirmed bookings to downstream consumers.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, b *model.Booking, l *model.Listing) error
}

// Request carries a guest's booking or quote input.
type Request struct {
	ListingID       uint64
	GuestID         uint64
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          model.Guests
	CouponCode      string
	SpecialRequests string
}

// Quote is the side-effect free preview of a booking.
type Quote struct {
	ListingID     uint64        `json:"listing_id"`
	CheckIn       time.Time     `json:"checkin"`
	CheckOut      time.Time     `json:"checkout"`
	Guests        model.Guests  `json:"guests"`
	Pricing       model.Pricing `json:"pricing"`
	Available     bool          `json:"available"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	CouponApplied bool          `json:"coupon_applied"`
	CouponError   string        `json:"coupon_error,omitempty"`
}

// Service runs the booking flow.
type Service struct {
	store     Store
	conflicts ConflictDetector
	analytics AnalyticsRecorder
	publisher Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAnalytics records booking counters after each commit.
func WithAnalytics(a AnalyticsRecorder) Option {
	return func(s *Service) { s.analytics = a }
}

// WithPublisher publishes an event after each commit.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService constructs a Service. It panics if store is nil.
func NewService(store Store, logger *logrus.Logger, opts ...Option) *Service {
	if store == nil {
		panic("nil store passed to booking.NewService")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{
		store:     store,
		conflicts: NewConflictDetector(store),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote prices a prospective stay without writing anything. An unusable
// coupon does not fail the quote; it is reported in CouponError and no
// discount is applied.
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	if err := pricing.ValidateRange(req.CheckIn, req.CheckOut); err != nil {
		return nil, err
	}
	conflict, err := s.conflicts.HasConflict(ctx, req.ListingID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	listing, err := s.listing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	q := &Quote{
		ListingID:  req.ListingID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Guests:     req.Guests,
		CouponCode: model.NormalizeCode(req.CouponCode),
		Available:  !conflict,
	}
	coupon, err := s.resolveCoupon(ctx, req.CouponCode, now)
	switch {
	case errors.Is(err, ErrInvalidCoupon):
		q.CouponError = err.Error()
	case err != nil:
		return nil, err
	}
	q.CouponApplied = coupon != nil

	q.Pricing, err = pricing.Compute(pricing.Input{
		NightlyPrice: listing.NightlyPrice,
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		Coupon:       coupon,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Create books a stay. Guards run in a fixed order: date range and guest
// counts, availability, self-booking, coupon. The booking is stored as
// confirmed and paid; payment is simulated.
func (s *Service) Create(ctx context.Context, req Request) (*model.Booking, error) {
	if err := pricing.ValidateRange(req.CheckIn, req.CheckOut); err != nil {
		return nil, err
	}
	if err := req.Guests.Validate(); err != nil {
		return nil, err
	}

	conflict, err := s.conflicts.HasConflict(ctx, req.ListingID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if conflict {
		return nil, ErrConflict
	}

	listing, err := s.listing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID == req.GuestID {
		return nil, ErrOwnBooking
	}

	now := s.now()
	coupon, err := s.resolveCoupon(ctx, req.CouponCode, now)
	if err != nil {
		return nil, err
	}
	price, err := pricing.Compute(pricing.Input{
		NightlyPrice: listing.NightlyPrice,
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		Coupon:       coupon,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}

	confirmedAt := now
	b := &model.Booking{
		ListingID:       req.ListingID,
		GuestID:         req.GuestID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		Pricing:         price,
		Status:          model.BookingConfirmed,
		PaymentStatus:   model.PaymentPaid,
		SpecialRequests: req.SpecialRequests,
		BookedAt:        now,
		ConfirmedAt:     &confirmedAt,
	}
	if coupon != nil {
		id := coupon.ID
		b.CouponID = &id
	}

	if err := s.store.CommitBooking(ctx, b); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, repository.ErrCouponExhausted):
			return nil, ErrInvalidCoupon
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("commit booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"reference":  b.Reference(),
		"listing_id": b.ListingID,
		"guest_id":   b.GuestID,
		"total":      b.Pricing.Total,
	}).Info("booking confirmed")

	s.afterCommit(ctx, b, listing)
	return b, nil
}

// afterCommit records analytics and publishes the confirmation. Both are
// best effort: the booking is already durable.
func (s *Service) afterCommit(ctx context.Context, b *model.Booking, l *model.Listing) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if s.analytics != nil {
		if err := s.analytics.RecordBooking(ctx, b.ListingID, b.Pricing.Total); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warn("record booking analytics failed")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBookingConfirmed(ctx, b, l); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warn("publish booking.confirmed failed")
		}
	}
}

// Cancel cancels a confirmed booking on behalf of its guest or the host
// of its listing.
func (s *Service) Cancel(ctx context.Context, bookingID, actorID uint64, role Role) (*model.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var reason string
	switch role {
	case RoleGuest:
		if err := checkGuestCancel(b, actorID, now); err != nil {
			return nil, err
		}
		reason = ReasonGuestCancelled
	case RoleHost:
		l, err := s.listing(ctx, b.ListingID)
		if err != nil {
			return nil, err
		}
		if err := checkHostCancel(b, l, actorID); err != nil {
			return nil, err
		}
		reason = ReasonHostCancelled
	default:
		return nil, ErrUnauthorized
	}

	change := model.StatusChange{From: model.BookingConfirmed, To: model.BookingCancelled, At: now, Reason: reason}
	if err := s.transition(ctx, b, change); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"actor_id":   actorID,
		"role":       role,
	}).Info("booking cancelled")
	return b, nil
}

// Complete marks a confirmed stay as completed.
func (s *Service) Complete(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	change := model.StatusChange{From: b.Status, To: model.BookingCompleted, At: s.now()}
	if err := s.transition(ctx, b, change); err != nil {
		return nil, err
	}
	return b, nil
}

// Refund moves a confirmed booking to refunded and flags the payment.
func (s *Service) Refund(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	change := model.StatusChange{
		From:          b.Status,
		To:            model.BookingRefunded,
		At:            s.now(),
		PaymentStatus: model.PaymentRefunded,
	}
	if err := s.transition(ctx, b, change); err != nil {
		return nil, err
	}
	return b, nil
}

// Get loads a booking, mapping a missing row to ErrNotFound.
func (s *Service) Get(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

// Trips lists the bookings made by a guest.
func (s *Service) Trips(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	return s.store.BookingsByGuest(ctx, guestID)
}

// HostBookings lists the bookings made on listings owned by hostID.
func (s *Service) HostBookings(ctx context.Context, hostID uint64) ([]model.Booking, error) {
	return s.store.BookingsByHost(ctx, hostID)
}

// transition validates and applies change. A concurrent change that moved
// the booking out of change.From surfaces as ErrWrongState.
func (s *Service) transition(ctx context.Context, b *model.Booking, change model.StatusChange) error {
	if !CanTransition(change.From, change.To) {
		return ErrWrongState
	}
	if err := s.store.UpdateBookingStatus(ctx, b.ID, change); err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return ErrWrongState
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	b.Apply(change)
	return nil
}

func (s *Service) listing(ctx context.Context, id uint64) (*model.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	return l, nil
}

// resolveCoupon looks up a submitted code. An empty code yields no coupon;
// an unknown or unusable one yields ErrInvalidCoupon.
func (s *Service) resolveCoupon(ctx context.Context, code string, now time.Time) (*model.Coupon, error) {
	code = model.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	c, err := s.store.FindCouponByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCoupon
	}
	if err != nil {
		return nil, fmt.Errorf("load coupon: %w", err)
	}
	if !c.IsValidForUse(now) {
		return nil, ErrInvalidCoupon
	}
	return c, nil
}
