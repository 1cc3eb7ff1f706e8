package booking

import (
	"context"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back stays do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict returns the first active booking overlapping [checkIn,
// checkOut), or nil. Every booking is checked, past ones included.
func FindConflict(existing []model.Booking, checkIn, checkOut time.Time) *model.Booking {
	for i := range existing {
		b := &existing[i]
		if !b.Status.Active() {
			continue
		}
		if Overlaps(b.CheckIn, b.CheckOut, checkIn, checkOut) {
			return b
		}
	}
	return nil
}

// BookingLister loads the bookings that still claim dates on a listing.
type BookingLister interface {
	ActiveBookingsForListing(ctx context.Context, listingID uint64) ([]model.Booking, error)
}

// ConflictDetector answers availability questions for a listing. It never
// writes.
type ConflictDetector struct {
	store BookingLister
}

// NewConflictDetector returns a detector backed by store.
func NewConflictDetector(store BookingLister) ConflictDetector {
	return ConflictDetector{store: store}
}

// HasConflict reports whether [checkIn, checkOut) overlaps any confirmed
// or pending booking of listingID.
func (d ConflictDetector) HasConflict(ctx context.Context, listingID uint64, checkIn, checkOut time.Time) (bool, error) {
	existing, err := d.store.ActiveBookingsForListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	return FindConflict(existing, checkIn, checkOut) != nil, nil
}
