// Package repository implements MySQL persistence for listings, bookings,
// coupons, analytics, interactions, reviews, users and refresh tokens.
// The sentinel errors below let the service and handler layers tell
// failure scenarios apart without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row addressed by id or code does not
// exist. Handlers translate it into 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write loses against concurrent state:
// an overlapping booking committed first, or a status changed between
// read and update. Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

// ErrCouponExhausted is returned when the conditional redemption update
// matched no row because the coupon was deactivated, expired or used up.
var ErrCouponExhausted = errors.New("coupon no longer redeemable")

// ErrDuplicate is returned for unique key violations.
var ErrDuplicate = errors.New("duplicate entry")

// isDuplicate reports whether err is a MySQL duplicate key error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
