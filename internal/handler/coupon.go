package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/repository"
)

// CouponStore is the coupon admin storage.
type CouponStore interface {
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	CreateCoupon(ctx context.Context, c *model.Coupon) error
	ToggleCoupon(ctx context.Context, id uint64) (*model.Coupon, error)
	DeleteCoupon(ctx context.Context, id uint64) error
}

// CouponHandler is the admin coupon API.
type CouponHandler struct {
	store  CouponStore
	logger *logrus.Logger
}

// NewCouponHandler panics if store is nil.
func NewCouponHandler(store CouponStore, logger *logrus.Logger) *CouponHandler {
	if store == nil {
		panic("nil store passed to NewCouponHandler")
	}
	return &CouponHandler{store: store, logger: logger}
}

type couponReq struct {
	Code         string  `json:"code"`
	DiscountType string  `json:"discount_type"`
	Amount       float64 `json:"amount"`
	ExpiresAt    string  `json:"expires_at"`
	MaxUses      int     `json:"max_uses"`
	IsActive     *bool   `json:"is_active"`
}

// List returns every coupon, newest first.
func (h *CouponHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	cs, err := h.store.ListCoupons(ctx)
	if err != nil {
		return internalError(c, "list coupons failed")
	}
	if cs == nil {
		cs = []model.Coupon{}
	}
	return c.JSON(http.StatusOK, echo.Map{"coupons": cs})
}

// Create stores a coupon. Codes are trimmed and upper-cased. expires_at
// accepts RFC 3339 or a bare date, which expires at the end of that day.
func (h *CouponHandler) Create(c echo.Context) error {
	var req couponReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	cp := model.Coupon{
		Code:         model.NormalizeCode(req.Code),
		DiscountType: model.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		Amount:       req.Amount,
		MaxUses:      req.MaxUses,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	if s := strings.TrimSpace(req.ExpiresAt); s != "" {
		exp, err := parseExpiry(s)
		if err != nil {
			return badRequest(c, "expires_at must be RFC 3339 or YYYY-MM-DD")
		}
		cp.ExpiresAt = &exp
	}
	if err := cp.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if uid, err := getUserID(c); err == nil {
		cp.CreatedBy = &uid
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.CreateCoupon(ctx, &cp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "coupon code already exists"})
		}
		h.logger.WithError(err).Error("create coupon failed")
		return internalError(c, "create coupon failed")
	}
	return c.JSON(http.StatusCreated, cp)
}

func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(24*time.Hour - time.Second), nil
}

// Toggle flips a coupon's active flag.
func (h *CouponHandler) Toggle(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid coupon id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cp, err := h.store.ToggleCoupon(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "coupon not found"})
		}
		return internalError(c, "toggle coupon failed")
	}
	return c.JSON(http.StatusOK, cp)
}

// Delete removes a coupon.
func (h *CouponHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid coupon id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.DeleteCoupon(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "coupon not found"})
		}
		return internalError(c, "delete coupon failed")
	}
	return c.NoContent(http.StatusNoContent)
}
