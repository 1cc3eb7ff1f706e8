package model

import (
	"errors"
	"strings"
	"time"
)

// DiscountType selects how a coupon amount is applied.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon mirrors the `coupons` table. Code is stored normalized so lookups
// are case-insensitive.
type Coupon struct {
	ID           uint64       `json:"id"`
	Code         string       `json:"code"`
	DiscountType DiscountType `json:"discount_type"`
	Amount       float64      `json:"amount"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	MaxUses      int          `json:"max_uses"`
	Uses         int          `json:"uses"`
	IsActive     bool         `json:"is_active"`
	CreatedBy    *uint64      `json:"created_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidForUse reports whether the coupon can be redeemed at now. A
// MaxUses of zero means unlimited.
func (c *Coupon) IsValidForUse(now time.Time) bool {
	if c == nil || !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	if c.MaxUses > 0 && c.Uses >= c.MaxUses {
		return false
	}
	return true
}

// Validate checks a coupon definition before it is stored.
func (c *Coupon) Validate() error {
	if c.Code == "" {
		return errors.New("coupon code is required")
	}
	switch c.DiscountType {
	case DiscountPercent:
		if c.Amount < 0 || c.Amount > 100 {
			return errors.New("percent discount must be between 0 and 100")
		}
	case DiscountFixed:
		if c.Amount < 0 {
			return errors.New("fixed discount cannot be negative")
		}
	default:
		return errors.New("discount type must be percent or fixed")
	}
	if c.MaxUses < 0 {
		return errors.New("max uses cannot be negative")
	}
	return nil
}
