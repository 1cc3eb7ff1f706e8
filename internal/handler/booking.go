package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/booking"
	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/pricing"
)

// ListingReader loads listings for ownership checks.
type ListingReader interface {
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
}

// BookingHandler exposes the booking flow.
type BookingHandler struct {
	svc      *booking.Service
	listings ListingReader
	logger   *logrus.Logger
}

// NewBookingHandler panics on nil dependencies.
func NewBookingHandler(svc *booking.Service, listings ListingReader, logger *logrus.Logger) *BookingHandler {
	if svc == nil || listings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc, listings: listings, logger: logger}
}

type bookingReq struct {
	ListingID       uint64       `json:"listing_id"`
	CheckIn         string       `json:"checkin"`
	CheckOut        string       `json:"checkout"`
	Guests          model.Guests `json:"guests"`
	CouponCode      string       `json:"coupon_code"`
	SpecialRequests string       `json:"special_requests"`
}

type bookingResp struct {
	model.Booking
	Reference string `json:"reference"`
}

func toBookingResp(b model.Booking) bookingResp {
	return bookingResp{Booking: b, Reference: b.Reference()}
}

func toBookingResps(bs []model.Booking) []bookingResp {
	out := make([]bookingResp, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResp(b))
	}
	return out
}

func (h *BookingHandler) request(c echo.Context, guestID uint64) (booking.Request, error) {
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return booking.Request{}, errors.New("invalid body")
	}
	if req.ListingID == 0 {
		return booking.Request{}, errors.New("listing_id required")
	}
	in, err := time.Parse(dateLayout, strings.TrimSpace(req.CheckIn))
	if err != nil {
		return booking.Request{}, errors.New("checkin must be YYYY-MM-DD")
	}
	out, err := time.Parse(dateLayout, strings.TrimSpace(req.CheckOut))
	if err != nil {
		return booking.Request{}, errors.New("checkout must be YYYY-MM-DD")
	}
	if req.Guests == (model.Guests{}) {
		req.Guests.Adults = 1
	}
	return booking.Request{
		ListingID:       req.ListingID,
		GuestID:         guestID,
		CheckIn:         in,
		CheckOut:        out,
		Guests:          req.Guests,
		CouponCode:      req.CouponCode,
		SpecialRequests: strings.TrimSpace(req.SpecialRequests),
	}, nil
}

// Quote prices a stay without booking it. Anonymous callers are allowed.
func (h *BookingHandler) Quote(c echo.Context) error {
	uid, _ := getUserID(c)
	req, err := h.request(c, uid)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	q, err := h.svc.Quote(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Create books a stay for the caller.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	req, err := h.request(c, uid)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.svc.Create(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(*b))
}

// List returns the caller's trips and the bookings on listings they host.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	trips, err := h.svc.Trips(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	hosted, err := h.svc.HostBookings(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"trips":         toBookingResps(trips),
		"host_bookings": toBookingResps(hosted),
	})
}

// Get returns one booking to its guest, the listing's host or an admin.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.svc.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	if b.GuestID != uid && !isAdmin(c) {
		l, err := h.listings.GetListing(ctx, b.ListingID)
		if err != nil || l.OwnerID != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"error": booking.ErrUnauthorized.Error()})
		}
	}
	return c.JSON(http.StatusOK, toBookingResp(*b))
}

// GuestCancel cancels the caller's own booking, subject to the 24 hour
// window.
func (h *BookingHandler) GuestCancel(c echo.Context) error {
	return h.cancel(c, booking.RoleGuest)
}

// HostCancel cancels a booking on one of the caller's listings.
func (h *BookingHandler) HostCancel(c echo.Context) error {
	return h.cancel(c, booking.RoleHost)
}

func (h *BookingHandler) cancel(c echo.Context, role booking.Role) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.svc.Cancel(ctx, id, uid, role)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(*b))
}

// Complete marks a confirmed booking completed. Admin only.
func (h *BookingHandler) Complete(c echo.Context) error {
	return h.adminTransition(c, h.svc.Complete)
}

// Refund refunds a confirmed booking. Admin only.
func (h *BookingHandler) Refund(c echo.Context) error {
	return h.adminTransition(c, h.svc.Refund)
}

func (h *BookingHandler) adminTransition(c echo.Context, fn func(context.Context, uint64) (*model.Booking, error)) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := fn(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(*b))
}

// fail maps booking errors to HTTP responses.
func (h *BookingHandler) fail(c echo.Context, err error) error {
	status := bookingStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Path()).Error("booking request failed")
		return internalError(c, "booking request failed")
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func bookingStatus(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidDateRange), errors.Is(err, model.ErrInvalidGuests):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrOwnBooking), errors.Is(err, booking.ErrWrongState):
		return http.StatusConflict
	case errors.Is(err, booking.ErrInvalidCoupon), errors.Is(err, booking.ErrPolicyWindow):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
