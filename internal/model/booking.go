package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingRefunded  BookingStatus = "refunded"
)

// Active reports whether a booking in this status still claims its dates.
func (s BookingStatus) Active() bool {
	return s == BookingConfirmed || s == BookingPending
}

// PaymentStatus tracks the simulated payment attached to a booking.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// ErrInvalidGuests is returned when guest counts are out of range.
var ErrInvalidGuests = errors.New("at least one adult is required and guest counts cannot be negative")

// Guests holds the party size of a booking.
type Guests struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
	Pets     int `json:"pets"`
}

// Validate enforces adults >= 1 and non-negative counts elsewhere.
func (g Guests) Validate() error {
	if g.Adults < 1 || g.Children < 0 || g.Infants < 0 || g.Pets < 0 {
		return ErrInvalidGuests
	}
	return nil
}

// Total is the number of people, pets excluded.
func (g Guests) Total() int { return g.Adults + g.Children + g.Infants }

// Pricing is the itemized snapshot stored with a booking. It is computed
// once at creation and never recalculated.
type Pricing struct {
	Nights      int     `json:"nights"`
	BasePrice   float64 `json:"base_price"`
	CleaningFee float64 `json:"cleaning_fee"`
	ServiceFee  float64 `json:"service_fee"`
	Taxes       float64 `json:"taxes"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
}

// Booking mirrors the `bookings` table.
type Booking struct {
	ID                 uint64        `json:"id"`
	ListingID          uint64        `json:"listing_id"`
	GuestID            uint64        `json:"guest_id"`
	CheckIn            time.Time     `json:"checkin"`
	CheckOut           time.Time     `json:"checkout"`
	Guests             Guests        `json:"guests"`
	Pricing            Pricing       `json:"pricing"`
	Status             BookingStatus `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	CouponID           *uint64       `json:"coupon_id,omitempty"`
	SpecialRequests    string        `json:"special_requests,omitempty"`
	BookedAt           time.Time     `json:"booked_at"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
}

// Reference is the short human-facing booking code, e.g. "WB00C0FFEE".
func (b Booking) Reference() string {
	hex := fmt.Sprintf("%08X", b.ID)
	return "WB" + strings.ToUpper(hex[len(hex)-8:])
}

// Nights returns the number of nights recorded in the pricing snapshot.
func (b Booking) Nights() int { return b.Pricing.Nights }

// StatusChange describes a single conditional status update. Stores apply
// it only while the booking is still in From.
type StatusChange struct {
	From          BookingStatus
	To            BookingStatus
	At            time.Time
	Reason        string
	PaymentStatus PaymentStatus
}

// Apply mirrors a successful change onto the in-memory booking.
func (b *Booking) Apply(c StatusChange) {
	b.Status = c.To
	switch c.To {
	case BookingCancelled:
		at := c.At
		b.CancelledAt = &at
		b.CancellationReason = c.Reason
	case BookingConfirmed:
		at := c.At
		b.ConfirmedAt = &at
	}
	if c.PaymentStatus != "" {
		b.PaymentStatus = c.PaymentStatus
	}
}
