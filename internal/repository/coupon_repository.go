package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// CouponRepo manages discount coupons. Codes are stored normalised, so
// every lookup normalises its input too.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a new CouponRepo bound to the given database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponColumns = `id, code, discount_type, amount, expires_at, max_uses, uses, is_active, created_by, created_at`

func scanCoupon(row rowScanner) (model.Coupon, error) {
	var (
		c         model.Coupon
		expiresAt sql.NullTime
		createdBy sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.Amount, &expiresAt, &c.MaxUses, &c.Uses, &c.IsActive, &createdBy, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		c.ExpiresAt = &t
	}
	if createdBy.Valid {
		id := uint64(createdBy.Int64)
		c.CreatedBy = &id
	}
	return c, nil
}

// FindCouponByCode returns the coupon with the given code or ErrNotFound.
func (r *CouponRepo) FindCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = ?`, model.NormalizeCode(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetCoupon returns a coupon by id or ErrNotFound.
func (r *CouponRepo) GetCoupon(ctx context.Context, id uint64) (*model.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCoupons returns all coupons, newest first.
func (r *CouponRepo) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCoupon stores a new coupon. A code that already exists yields
// ErrDuplicate.
func (r *CouponRepo) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	c.Code = model.NormalizeCode(c.Code)
	const q = `INSERT INTO coupons (code, discount_type, amount, expires_at, max_uses, is_active, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.Code, string(c.DiscountType), c.Amount, nullableTime(c.ExpiresAt), c.MaxUses, c.IsActive, nullableID(c.CreatedBy))
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetCoupon(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

// ToggleCoupon flips is_active and returns the updated coupon.
func (r *CouponRepo) ToggleCoupon(ctx context.Context, id uint64) (*model.Coupon, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE coupons SET is_active = NOT is_active WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.GetCoupon(ctx, id)
}

// DeleteCoupon removes a coupon. Bookings keep their pricing snapshot; their
// coupon reference is cleared by the foreign key.
func (r *CouponRepo) DeleteCoupon(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// redeemCouponTx increments uses only if the coupon is still redeemable at
// now. It returns ErrCouponExhausted when no row qualified.
func redeemCouponTx(ctx context.Context, tx *sql.Tx, couponID uint64, now time.Time) error {
	const q = `UPDATE coupons SET uses = uses + 1
		WHERE id = ? AND is_active = 1
		AND (expires_at IS NULL OR expires_at >= ?)
		AND (max_uses = 0 OR uses < max_uses)`
	res, err := tx.ExecContext(ctx, q, couponID, now.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCouponExhausted
	}
	return nil
}
