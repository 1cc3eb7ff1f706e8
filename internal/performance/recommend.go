package performance

import "github.com/iliyamo/stay-reservation/internal/model"

// Thresholds below which a weak listing gets a specific tip.
const (
	lowViews      = 10
	lowCTR        = 0.05
	lowRating     = 3.5
	lowConversion = 0.1
)

// Recommendations returns the tips for a listing in the given status.
// Poor and critical listings get one tip per weak metric; average ones get
// a single generic tip; good and excellent ones get none.
func Recommendations(status model.PerformanceStatus, m model.Metrics) []model.Recommendation {
	recs := []model.Recommendation{}
	switch status {
	case model.StatusPoor, model.StatusCritical:
		if m.TotalViews < lowViews {
			recs = append(recs, model.Recommendation{
				Type:     "visibility",
				Priority: "high",
				Message:  "Your listing has low visibility. Consider improving your title and description with relevant keywords.",
				Action:   "optimize_seo",
			})
		}
		if m.ClickThroughRate < lowCTR {
			recs = append(recs, model.Recommendation{
				Type:     "attractiveness",
				Priority: "high",
				Message:  "Low click-through rate. Try updating your main photo and pricing.",
				Action:   "update_photos",
			})
		}
		if m.AvgRating < lowRating {
			recs = append(recs, model.Recommendation{
				Type:     "quality",
				Priority: "critical",
				Message:  "Low ratings are affecting your performance. Address guest concerns and improve amenities.",
				Action:   "improve_quality",
			})
		}
		if m.ConversionRate < lowConversion {
			recs = append(recs, model.Recommendation{
				Type:     "conversion",
				Priority: "medium",
				Message:  "Guests view but do not book. Consider adjusting pricing or availability.",
				Action:   "adjust_pricing",
			})
		}
	case model.StatusAverage:
		recs = append(recs, model.Recommendation{
			Type:     "optimization",
			Priority: "medium",
			Message:  "Your listing is performing okay. Small improvements could boost your ranking.",
			Action:   "general_optimization",
		})
	}
	return recs
}
