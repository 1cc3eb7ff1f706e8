// Package performance rolls interaction, booking and review activity up
// into a 0-100 score per listing, caches the snapshots and persists the
// score used for search ranking.
package performance

import (
	"math"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// Score weights. They sum to one.
const (
	weightCTR        = 0.25
	weightConversion = 0.30
	weightEngagement = 0.20
	weightRating     = 0.15
	weightBookings   = 0.10
)

// Counts are the raw inputs for one listing over one window.
type Counts struct {
	Views    int
	Clicks   int
	Bookings int
	Revenue  float64
	Ratings  []int
}

// ComputeMetrics derives the rates and score from c.
func ComputeMetrics(c Counts) model.Metrics {
	m := model.Metrics{
		TotalViews:    c.Views,
		TotalClicks:   c.Clicks,
		TotalBookings: c.Bookings,
		TotalReviews:  len(c.Ratings),
		TotalRevenue:  c.Revenue,
	}
	if c.Views > 0 {
		m.ClickThroughRate = float64(c.Clicks) / float64(c.Views)
		m.OverallEngagement = float64(c.Clicks+c.Bookings) / float64(c.Views)
	}
	if c.Clicks > 0 {
		m.ConversionRate = float64(c.Bookings) / float64(c.Clicks)
	}
	if len(c.Ratings) > 0 {
		sum := 0
		for _, r := range c.Ratings {
			sum += r
		}
		m.AvgRating = float64(sum) / float64(len(c.Ratings))
	}
	m.PerformanceScore = Score(m)
	return m
}

// Score combines the metrics into an integer in [0, 100]. Every term is
// scaled to 0-100 and clamped before weighting.
func Score(m model.Metrics) int {
	score := weightCTR*clamp(m.ClickThroughRate*100) +
		weightConversion*clamp(m.ConversionRate*100) +
		weightEngagement*clamp(m.OverallEngagement*100) +
		weightRating*clamp(m.AvgRating/5*100) +
		weightBookings*clamp(float64(m.TotalBookings)*10)
	return int(clamp(math.Round(score)))
}

// StatusFor maps a score onto its band. The mapping is monotonic.
func StatusFor(score int) model.PerformanceStatus {
	switch {
	case score >= 80:
		return model.StatusExcellent
	case score >= 60:
		return model.StatusGood
	case score >= 40:
		return model.StatusAverage
	case score >= 20:
		return model.StatusPoor
	default:
		return model.StatusCritical
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
