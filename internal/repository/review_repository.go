package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// ReviewRepo stores guest reviews and the rating queries built on them.
type ReviewRepo struct {
	db *sql.DB
}

// NewReviewRepo returns a new ReviewRepo bound to the given database.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// CreateReview inserts a review and sets its id.
func (r *ReviewRepo) CreateReview(ctx context.Context, rv *model.Review) error {
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO reviews (listing_id, author_id, rating, comment, status, sentiment_label, sentiment_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rv.ListingID, rv.AuthorID, rv.Rating, rv.Comment, string(rv.Status),
		rv.SentimentLabel, rv.SentimentScore, rv.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// CountByAuthorSince counts an author's reviews of a listing since the
// given time, in any status.
func (r *ReviewRepo) CountByAuthorSince(ctx context.Context, listingID, authorID uint64, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM reviews WHERE listing_id = ? AND author_id = ? AND created_at >= ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, listingID, authorID, since.UTC()).Scan(&n)
	return n, err
}

// CountApprovedSince counts a listing's approved reviews since the given
// time.
func (r *ReviewRepo) CountApprovedSince(ctx context.Context, listingID uint64, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM reviews WHERE listing_id = ? AND status = 'approved' AND created_at >= ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, listingID, since.UTC()).Scan(&n)
	return n, err
}

// ApprovedRatings returns the ratings of approved reviews since the given
// time. A zero since returns every approved rating.
func (r *ReviewRepo) ApprovedRatings(ctx context.Context, listingID uint64, since time.Time) ([]int, error) {
	const q = `SELECT rating FROM reviews WHERE listing_id = ? AND status = 'approved' AND created_at >= ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, listingID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

// WindowRatings returns the ratings of every review since the given time,
// pending ones included.
func (r *ReviewRepo) WindowRatings(ctx context.Context, listingID uint64, since time.Time) ([]int, error) {
	const q = `SELECT rating FROM reviews WHERE listing_id = ? AND created_at >= ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, listingID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

// ReviewsByListing returns a listing's approved reviews, newest first.
func (r *ReviewRepo) ReviewsByListing(ctx context.Context, listingID uint64) ([]model.Review, error) {
	const q = `SELECT id, listing_id, author_id, rating, comment, status, sentiment_label, sentiment_score, created_at
		FROM reviews WHERE listing_id = ? AND status = 'approved' ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ListingID, &rv.AuthorID, &rv.Rating, &rv.Comment, &rv.Status,
			&rv.SentimentLabel, &rv.SentimentScore, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
