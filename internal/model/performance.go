package model

import "time"

// Recommendation is a rule-based tip shown to hosts of weak listings.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// Metrics are the raw counts and derived ratios behind a score.
type Metrics struct {
	TotalViews        int     `json:"total_views"`
	TotalClicks       int     `json:"total_clicks"`
	TotalBookings     int     `json:"total_bookings"`
	TotalReviews      int     `json:"total_reviews"`
	TotalRevenue      float64 `json:"total_revenue"`
	ClickThroughRate  float64 `json:"click_through_rate"`
	ConversionRate    float64 `json:"conversion_rate"`
	OverallEngagement float64 `json:"overall_engagement"`
	AvgRating         float64 `json:"avg_rating"`
	PerformanceScore  int     `json:"performance_score"`
}

// Performance is the derived snapshot for one listing over a window of
// days. It is cached briefly and never persisted as a whole.
type Performance struct {
	ListingID       uint64            `json:"listing_id"`
	Title           string            `json:"title"`
	WindowDays      int               `json:"window_days"`
	Metrics         Metrics           `json:"metrics"`
	Status          PerformanceStatus `json:"status"`
	Recommendations []Recommendation  `json:"recommendations"`
	LastUpdated     time.Time         `json:"last_updated"`
}
