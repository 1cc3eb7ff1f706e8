package model

import "time"

// DefaultRankingScore is the score a listing ranks with until the
// performance job has computed a real one.
const DefaultRankingScore = 50

// PerformanceStatus buckets a performance score into five bands.
type PerformanceStatus string

const (
	StatusExcellent PerformanceStatus = "excellent"
	StatusGood      PerformanceStatus = "good"
	StatusAverage   PerformanceStatus = "average"
	StatusPoor      PerformanceStatus = "poor"
	StatusCritical  PerformanceStatus = "critical"
)

// Listing mirrors the `listings` table. RankingScore, PerformanceStatus
// and LastRankingUpdate are written only by the performance aggregator.
type Listing struct {
	ID                uint64            `json:"id"`
	OwnerID           uint64            `json:"owner_id"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Location          string            `json:"location"`
	Country           string            `json:"country"`
	ImageURL          string            `json:"image_url,omitempty"`
	NightlyPrice      float64           `json:"nightly_price"`
	RankingScore      int               `json:"ranking_score"`
	PerformanceStatus PerformanceStatus `json:"performance_status,omitempty"`
	LastRankingUpdate *time.Time        `json:"last_ranking_update,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// EffectiveScore returns the score used for ordering. A listing that was
// never scored, or scored zero, ranks with DefaultRankingScore, so a
// zero-scored listing carries no "Needs Attention" badge.
func (l Listing) EffectiveScore() int {
	if l.LastRankingUpdate == nil || l.RankingScore == 0 {
		return DefaultRankingScore
	}
	return l.RankingScore
}
