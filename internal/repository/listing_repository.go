package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// ListingRepo provides CRUD operations for listings and the score columns
// written by the performance aggregator.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the given database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

const listingColumns = `id, owner_id, title, description, location, country, image_url,
	nightly_price, ranking_score, performance_status, last_ranking_update, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (model.Listing, error) {
	var (
		l          model.Listing
		status     sql.NullString
		lastUpdate sql.NullTime
	)
	err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Location, &l.Country, &l.ImageURL,
		&l.NightlyPrice, &l.RankingScore, &status, &lastUpdate, &l.CreatedAt)
	if err != nil {
		return l, err
	}
	if status.Valid {
		l.PerformanceStatus = model.PerformanceStatus(status.String)
	}
	if lastUpdate.Valid {
		t := lastUpdate.Time.UTC()
		l.LastRankingUpdate = &t
	}
	return l, nil
}

func (r *ListingRepo) query(ctx context.Context, q string, args ...any) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateListing inserts a listing and populates its id and defaults.
func (r *ListingRepo) CreateListing(ctx context.Context, l *model.Listing) error {
	const q = `INSERT INTO listings (owner_id, title, description, location, country, image_url, nightly_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, l.OwnerID, l.Title, l.Description, l.Location, l.Country, l.ImageURL, l.NightlyPrice)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate ranking defaults and created_at
	got, err := r.GetListing(ctx, uint64(id))
	if err != nil {
		return err
	}
	*l = *got
	return nil
}

// GetListing returns a listing by id or ErrNotFound.
func (r *ListingRepo) GetListing(ctx context.Context, id uint64) (*model.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListListings returns every listing, newest first.
func (r *ListingRepo) ListListings(ctx context.Context) ([]model.Listing, error) {
	return r.query(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY created_at DESC, id DESC`)
}

// ListingsByOwner returns the listings a host owns.
func (r *ListingRepo) ListingsByOwner(ctx context.Context, ownerID uint64) ([]model.Listing, error) {
	return r.query(ctx, `SELECT `+listingColumns+` FROM listings WHERE owner_id = ? ORDER BY id`, ownerID)
}

// UpdateRankingScore stores the latest performance score of a listing.
func (r *ListingRepo) UpdateRankingScore(ctx context.Context, listingID uint64, score int, status model.PerformanceStatus, at time.Time) error {
	const q = `UPDATE listings SET ranking_score = ?, performance_status = ?, last_ranking_update = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, score, string(status), at.UTC(), listingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when values are unchanged.
		if _, err := r.GetListing(ctx, listingID); err != nil {
			return err
		}
	}
	return nil
}
