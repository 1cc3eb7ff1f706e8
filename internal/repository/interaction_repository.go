package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// InteractionRepo appends to and aggregates the search interaction log.
type InteractionRepo struct {
	db *sql.DB
}

// NewInteractionRepo returns a new InteractionRepo bound to the given database.
func NewInteractionRepo(db *sql.DB) *InteractionRepo { return &InteractionRepo{db: db} }

// CreateInteraction appends an interaction. The context blob is stored as JSON.
func (r *InteractionRepo) CreateInteraction(ctx context.Context, in *model.SearchInteraction) error {
	blob, err := json.Marshal(in.Context)
	if err != nil {
		return err
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO search_interactions (user_id, listing_id, action, context, reward, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, in.UserID, in.ListingID, string(in.Action), string(blob), in.Reward, in.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	in.ID = uint64(id)
	return nil
}

// InteractionCounts returns the views and clicks logged for a listing
// since the given time.
func (r *InteractionRepo) InteractionCounts(ctx context.Context, listingID uint64, since time.Time) (views, clicks int, err error) {
	const q = `SELECT
		COALESCE(SUM(action = 'view'), 0),
		COALESCE(SUM(action = 'click'), 0)
		FROM search_interactions WHERE listing_id = ? AND created_at >= ?`
	err = r.db.QueryRowContext(ctx, q, listingID, since.UTC()).Scan(&views, &clicks)
	return views, clicks, err
}

// AggregateInteractions groups the whole log per listing, highest total reward first.
func (r *InteractionRepo) AggregateInteractions(ctx context.Context, limit int) ([]model.InteractionStats, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT listing_id,
		SUM(action = 'view'), SUM(action = 'click'), SUM(action = 'book'), SUM(reward) AS total_reward
		FROM search_interactions
		GROUP BY listing_id
		ORDER BY total_reward DESC, listing_id
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.InteractionStats
	for rows.Next() {
		var s model.InteractionStats
		if err := rows.Scan(&s.ListingID, &s.Views, &s.Clicks, &s.Bookings, &s.TotalReward); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
