package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// BookingRepo persists bookings. CommitBooking is the only way a booking
// enters the table: it serialises writers per listing with a row lock so
// two overlapping stays can never both be committed.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.listing_id, b.guest_id, b.checkin, b.checkout,
	b.adults, b.children, b.infants, b.pets,
	b.nights, b.base_price, b.cleaning_fee, b.service_fee, b.taxes, b.discount, b.total,
	b.status, b.payment_status, b.coupon_id, b.special_requests,
	b.booked_at, b.confirmed_at, b.cancelled_at, b.cancellation_reason`

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b           model.Booking
		couponID    sql.NullInt64
		requests    sql.NullString
		confirmedAt sql.NullTime
		cancelledAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.ListingID, &b.GuestID, &b.CheckIn, &b.CheckOut,
		&b.Guests.Adults, &b.Guests.Children, &b.Guests.Infants, &b.Guests.Pets,
		&b.Pricing.Nights, &b.Pricing.BasePrice, &b.Pricing.CleaningFee, &b.Pricing.ServiceFee,
		&b.Pricing.Taxes, &b.Pricing.Discount, &b.Pricing.Total,
		&b.Status, &b.PaymentStatus, &couponID, &requests,
		&b.BookedAt, &confirmedAt, &cancelledAt, &b.CancellationReason)
	if err != nil {
		return b, err
	}
	if couponID.Valid {
		id := uint64(couponID.Int64)
		b.CouponID = &id
	}
	b.SpecialRequests = requests.String
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		b.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		b.CancelledAt = &t
	}
	return b, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ActiveBookingsForListing returns every pending or confirmed booking of a
// listing, past stays included.
func (r *BookingRepo) ActiveBookingsForListing(ctx context.Context, listingID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings b
		WHERE b.listing_id = ? AND b.status IN ('pending','confirmed') ORDER BY b.checkin`
	return queryBookings(ctx, r.db, q, listingID)
}

// CommitBooking inserts b in one transaction that locks the listing row,
// re-checks overlaps against active bookings and redeems the coupon with a
// conditional update. It returns ErrNotFound for a missing listing,
// ErrConflict when the dates were taken meanwhile and ErrCouponExhausted
// when the coupon stopped being redeemable. On success b.ID is set.
func (r *BookingRepo) CommitBooking(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the listing so concurrent commits for it run one at a time
	var locked uint64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM listings WHERE id = ? FOR UPDATE`, b.ListingID).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var overlapping int
	const qOverlap = `SELECT COUNT(*) FROM bookings
		WHERE listing_id = ? AND status IN ('pending','confirmed') AND checkin < ? AND ? < checkout`
	if err := tx.QueryRowContext(ctx, qOverlap, b.ListingID, b.CheckOut.UTC(), b.CheckIn.UTC()).Scan(&overlapping); err != nil {
		return err
	}
	if overlapping > 0 {
		return ErrConflict
	}

	if b.CouponID != nil {
		if err := redeemCouponTx(ctx, tx, *b.CouponID, b.BookedAt); err != nil {
			return err
		}
	}

	const qInsert = `INSERT INTO bookings (listing_id, guest_id, checkin, checkout,
		adults, children, infants, pets,
		nights, base_price, cleaning_fee, service_fee, taxes, discount, total,
		status, payment_status, coupon_id, special_requests,
		booked_at, confirmed_at, cancelled_at, cancellation_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qInsert, b.ListingID, b.GuestID, b.CheckIn.UTC(), b.CheckOut.UTC(),
		b.Guests.Adults, b.Guests.Children, b.Guests.Infants, b.Guests.Pets,
		b.Pricing.Nights, b.Pricing.BasePrice, b.Pricing.CleaningFee, b.Pricing.ServiceFee,
		b.Pricing.Taxes, b.Pricing.Discount, b.Pricing.Total,
		string(b.Status), string(b.PaymentStatus), nullableID(b.CouponID), nullableString(b.SpecialRequests),
		b.BookedAt.UTC(), nullableTime(b.ConfirmedAt), nullableTime(b.CancelledAt), b.CancellationReason)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.ID = uint64(id)
	return nil
}

// GetBooking returns a booking by id or ErrNotFound.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// UpdateBookingStatus applies change only while the booking is still in
// change.From. It returns ErrConflict when the status moved in between and
// ErrNotFound when the booking does not exist.
func (r *BookingRepo) UpdateBookingStatus(ctx context.Context, id uint64, change model.StatusChange) error {
	var confirmedAt, cancelledAt any
	reason := sql.NullString{}
	switch change.To {
	case model.BookingConfirmed:
		confirmedAt = change.At.UTC()
	case model.BookingCancelled:
		cancelledAt = change.At.UTC()
		reason = sql.NullString{String: change.Reason, Valid: true}
	}
	payment := sql.NullString{String: string(change.PaymentStatus), Valid: change.PaymentStatus != ""}

	const q = `UPDATE bookings SET status = ?,
		confirmed_at = COALESCE(?, confirmed_at),
		cancelled_at = COALESCE(?, cancelled_at),
		cancellation_reason = COALESCE(?, cancellation_reason),
		payment_status = COALESCE(?, payment_status)
		WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(change.To), confirmedAt, cancelledAt, reason, payment, id, string(change.From))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetBooking(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// BookingsByGuest returns a guest's trips, latest check-in first.
func (r *BookingRepo) BookingsByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.guest_id = ? ORDER BY b.checkin DESC, b.id DESC`
	return queryBookings(ctx, r.db, q, guestID)
}

// BookingsByHost returns bookings made on any listing the host owns.
func (r *BookingRepo) BookingsByHost(ctx context.Context, hostID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings b
		JOIN listings l ON l.id = b.listing_id
		WHERE l.owner_id = ? ORDER BY b.checkin DESC, b.id DESC`
	return queryBookings(ctx, r.db, q, hostID)
}

// BookingStats counts bookings made since the given time, in any status,
// and sums their totals.
func (r *BookingRepo) BookingStats(ctx context.Context, listingID uint64, since time.Time) (int, float64, error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM bookings WHERE listing_id = ? AND booked_at >= ?`
	var (
		count   int
		revenue float64
	)
	err := r.db.QueryRowContext(ctx, q, listingID, since.UTC()).Scan(&count, &revenue)
	return count, revenue, err
}

func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
