package booking

import (
	"errors"
	"fmt"
)

// Errors returned by Service. Each carries the message shown to the user.
var (
	ErrConflict        = errors.New("these dates are not available, please choose different dates")
	ErrOwnBooking      = errors.New("you cannot book your own listing")
	ErrInvalidCoupon   = errors.New("invalid or expired coupon")
	ErrNotFound        = errors.New("booking not found")
	ErrListingNotFound = errors.New("listing not found")
	ErrUnauthorized    = errors.New("you are not allowed to change this booking")
	ErrWrongState      = errors.New("this booking cannot be changed in its current state")
	ErrPolicyWindow    = errors.New("cannot cancel within 24 hours of check-in")
)

// Specific authorization failures. Both match ErrUnauthorized with errors.Is.
var (
	ErrNotGuest = fmt.Errorf("%w: you can only cancel your own bookings", ErrUnauthorized)
	ErrNotHost  = fmt.Errorf("%w: you can only cancel bookings for your own listings", ErrUnauthorized)
)
