package model

import "time"

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewPending  ReviewStatus = "pending"
	ReviewRejected ReviewStatus = "rejected"
)

// Review mirrors the `reviews` table. Only approved reviews count towards
// ratings.
type Review struct {
	ID             uint64       `json:"id"`
	ListingID      uint64       `json:"listing_id"`
	AuthorID       uint64       `json:"author_id"`
	Rating         int          `json:"rating"`
	Comment        string       `json:"comment"`
	Status         ReviewStatus `json:"status"`
	SentimentLabel string       `json:"sentiment_label,omitempty"`
	SentimentScore float64      `json:"sentiment_score"`
	CreatedAt      time.Time    `json:"created_at"`
}
