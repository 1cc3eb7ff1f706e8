package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// AnalyticsRepo maintains the per-listing counters in listing_analytics.
// Rows are created by the first upsert touching a listing.
type AnalyticsRepo struct {
	db *sql.DB
}

// NewAnalyticsRepo returns a new AnalyticsRepo bound to the given database.
func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

// IncrementViews adds one listing view.
func (r *AnalyticsRepo) IncrementViews(ctx context.Context, listingID uint64) error {
	const q = `INSERT INTO listing_analytics (listing_id, views_count) VALUES (?, 1)
		ON DUPLICATE KEY UPDATE views_count = views_count + 1`
	_, err := r.db.ExecContext(ctx, q, listingID)
	return err
}

// RecordBooking adds one booking and its revenue.
func (r *AnalyticsRepo) RecordBooking(ctx context.Context, listingID uint64, revenue float64) error {
	const q = `INSERT INTO listing_analytics (listing_id, bookings_count, revenue) VALUES (?, 1, ?)
		ON DUPLICATE KEY UPDATE bookings_count = bookings_count + 1, revenue = revenue + VALUES(revenue)`
	_, err := r.db.ExecContext(ctx, q, listingID, revenue)
	return err
}

// UpdateReviewStats overwrites the rating aggregates.
func (r *AnalyticsRepo) UpdateReviewStats(ctx context.Context, listingID uint64, average float64, count int) error {
	const q = `INSERT INTO listing_analytics (listing_id, average_rating, reviews_count) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE average_rating = VALUES(average_rating), reviews_count = VALUES(reviews_count)`
	_, err := r.db.ExecContext(ctx, q, listingID, average, count)
	return err
}

// GetAnalytics returns the counters of a listing. A listing without a row yet
// yields zero counters.
func (r *AnalyticsRepo) GetAnalytics(ctx context.Context, listingID uint64) (model.Analytics, error) {
	const q = `SELECT listing_id, views_count, bookings_count, revenue, average_rating, reviews_count, updated_at
		FROM listing_analytics WHERE listing_id = ?`
	var a model.Analytics
	err := r.db.QueryRowContext(ctx, q, listingID).Scan(&a.ListingID, &a.ViewsCount, &a.BookingsCount, &a.Revenue, &a.AverageRating, &a.ReviewsCount, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Analytics{ListingID: listingID}, nil
	}
	return a, err
}

// Overview sums the counters of the given listings. A nil slice means all
// listings. The average rating is weighted by review count.
func (r *AnalyticsRepo) Overview(ctx context.Context, listingIDs []uint64) (model.Overview, error) {
	q := `SELECT COUNT(*), COALESCE(SUM(views_count), 0), COALESCE(SUM(bookings_count), 0), COALESCE(SUM(revenue), 0),
		COALESCE(SUM(average_rating * reviews_count) / NULLIF(SUM(reviews_count), 0), 0)
		FROM listing_analytics`
	var args []any
	if listingIDs != nil {
		if len(listingIDs) == 0 {
			return model.Overview{}, nil
		}
		q += ` WHERE listing_id IN (?` + strings.Repeat(",?", len(listingIDs)-1) + `)`
		for _, id := range listingIDs {
			args = append(args, id)
		}
	}
	var o model.Overview
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&o.Listings, &o.TotalViews, &o.TotalBookings, &o.TotalRevenue, &o.AverageRating)
	if listingIDs != nil {
		o.Listings = len(listingIDs)
	}
	return o, err
}
