package booking

import (
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// GuestCancelWindow is how long before checkin a guest may still cancel.
// Hosts are not bound by it.
const GuestCancelWindow = 24 * time.Hour

// Cancellation reasons stamped on the booking.
const (
	ReasonGuestCancelled = "Guest cancelled"
	ReasonHostCancelled  = "Host cancelled"
)

// Role distinguishes the two parties allowed to cancel a booking.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
)

// New bookings skip pending and land in confirmed directly because payment
// is simulated. Pending is kept for bookings created by other paths.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingPending:   {model.BookingConfirmed},
	model.BookingConfirmed: {model.BookingCancelled, model.BookingCompleted, model.BookingRefunded},
}

// CanTransition reports whether from -> to is a defined transition.
func CanTransition(from, to model.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkGuestCancel applies the guest guards in order: ownership, state,
// then the 24 hour window.
func checkGuestCancel(b *model.Booking, actorID uint64, now time.Time) error {
	if b.GuestID != actorID {
		return ErrNotGuest
	}
	if b.Status != model.BookingConfirmed {
		return ErrWrongState
	}
	if b.CheckIn.Sub(now) < GuestCancelWindow {
		return ErrPolicyWindow
	}
	return nil
}

// checkHostCancel applies the host guards: ownership of the listing, then
// state. There is no notice period for hosts.
func checkHostCancel(b *model.Booking, l *model.Listing, actorID uint64) error {
	if l.OwnerID != actorID {
		return ErrNotHost
	}
	if b.Status != model.BookingConfirmed {
		return ErrWrongState
	}
	return nil
}
