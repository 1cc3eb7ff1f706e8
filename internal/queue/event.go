// Package queue carries domain events over RabbitMQ: booking confirmations
// and host performance notifications, with their publisher and consumers.
package queue

import (
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// Queue names. Both are durable and use the default exchange.
const (
	BookingConfirmedQueue = "booking.confirmed"
	HostNotificationQueue = "host.notifications"
)

// BookingConfirmedEvent is published when a booking is committed. It
// carries enough for consumers to log or notify without querying the
// database.
type BookingConfirmedEvent struct {
	BookingID    uint64    `json:"booking_id"`
	Reference    string    `json:"reference"`
	GuestID      uint64    `json:"guest_id"`
	ListingID    uint64    `json:"listing_id"`
	HostID       uint64    `json:"host_id"`
	ListingTitle string    `json:"listing_title"`
	CheckIn      time.Time `json:"checkin"`
	CheckOut     time.Time `json:"checkout"`
	Nights       int       `json:"nights"`
	Guests       int       `json:"guests"`
	Discount     float64   `json:"discount"`
	Total        float64   `json:"total"`
	CouponID     *uint64   `json:"coupon_id,omitempty"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for a committed booking.
func NewBookingConfirmedEvent(b *model.Booking, l *model.Listing) BookingConfirmedEvent {
	ev := BookingConfirmedEvent{
		BookingID:   b.ID,
		Reference:   b.Reference(),
		GuestID:     b.GuestID,
		ListingID:   b.ListingID,
		CheckIn:     b.CheckIn,
		CheckOut:    b.CheckOut,
		Nights:      b.Nights(),
		Guests:      b.Guests.Total(),
		Discount:    b.Pricing.Discount,
		Total:       b.Pricing.Total,
		CouponID:    b.CouponID,
		ConfirmedAt: b.BookedAt,
	}
	if b.ConfirmedAt != nil {
		ev.ConfirmedAt = *b.ConfirmedAt
	}
	if l != nil {
		ev.HostID = l.OwnerID
		ev.ListingTitle = l.Title
	}
	return ev
}
