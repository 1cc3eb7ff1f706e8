package model

import "time"

// Analytics is the per-listing counter row in `listing_analytics`. The
// row is created lazily by the first increment.
type Analytics struct {
	ListingID     uint64    `json:"listing_id"`
	ViewsCount    int64     `json:"views_count"`
	BookingsCount int64     `json:"bookings_count"`
	Revenue       float64   `json:"revenue"`
	AverageRating float64   `json:"average_rating"`
	ReviewsCount  int64     `json:"reviews_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Overview sums analytics across a set of listings.
type Overview struct {
	Listings      int     `json:"listings"`
	TotalViews    int64   `json:"total_views"`
	TotalBookings int64   `json:"total_bookings"`
	TotalRevenue  float64 `json:"total_revenue"`
	AverageRating float64 `json:"average_rating"`
}
