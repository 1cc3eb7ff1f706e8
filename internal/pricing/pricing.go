// Package pricing computes itemized quotes for a stay. Everything here is
// pure: coupon redemption and persistence belong to the booking service.
package pricing

import (
	"errors"
	"math"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// Fixed charges applied to every stay.
const (
	CleaningFee = 500.0
	ServiceFee  = 200.0
	TaxRate     = 0.18
)

// ErrInvalidDateRange is returned when checkout is not after checkin.
var ErrInvalidDateRange = errors.New("checkout date must be after check-in date")

// Input is everything a quote depends on. Now is only used to decide
// whether Coupon is still valid, so preview and commit agree as long as
// they are evaluated at the same instant.
type Input struct {
	NightlyPrice float64
	CheckIn      time.Time
	CheckOut     time.Time
	Coupon       *model.Coupon
	Now          time.Time
}

// ValidateRange checks that checkout is strictly after checkin.
func ValidateRange(checkIn, checkOut time.Time) error {
	if !checkOut.After(checkIn) {
		return ErrInvalidDateRange
	}
	return nil
}

// Nights rounds the stay up to whole days, with a minimum of one night.
func Nights(checkIn, checkOut time.Time) int {
	n := int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
	if n < 1 {
		return 1
	}
	return n
}

// Discount returns the reduction a coupon grants on base. The result never
// exceeds base.
func Discount(c *model.Coupon, base float64) float64 {
	if c == nil {
		return 0
	}
	var d float64
	switch c.DiscountType {
	case model.DiscountPercent:
		d = base * c.Amount / 100
	case model.DiscountFixed:
		d = c.Amount
	}
	return math.Max(0, math.Min(base, d))
}

// Compute returns the itemized pricing for in. A coupon that is not valid
// at in.Now contributes no discount.
func Compute(in Input) (model.Pricing, error) {
	if err := ValidateRange(in.CheckIn, in.CheckOut); err != nil {
		return model.Pricing{}, err
	}
	nights := Nights(in.CheckIn, in.CheckOut)
	base := in.NightlyPrice * float64(nights)
	taxes := math.Round(base * TaxRate)

	var discount float64
	if in.Coupon.IsValidForUse(in.Now) {
		discount = Discount(in.Coupon, base)
	}

	return model.Pricing{
		Nights:      nights,
		BasePrice:   base,
		CleaningFee: CleaningFee,
		ServiceFee:  ServiceFee,
		Taxes:       taxes,
		Discount:    discount,
		Total:       base - discount + CleaningFee + ServiceFee + taxes,
	}, nil
}
