package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/external"
	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/repository"
)

// Review moderation limits.
const (
	reviewCooldown       = 24 * time.Hour
	reviewBurstThreshold = 5
	maxCommentLength     = 2000
)

// ReviewStore is the review and rating storage used by ReviewHandler.
type ReviewStore interface {
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	CreateReview(ctx context.Context, rv *model.Review) error
	CountByAuthorSince(ctx context.Context, listingID, authorID uint64, since time.Time) (int, error)
	CountApprovedSince(ctx context.Context, listingID uint64, since time.Time) (int, error)
	ApprovedRatings(ctx context.Context, listingID uint64, since time.Time) ([]int, error)
	ReviewsByListing(ctx context.Context, listingID uint64) ([]model.Review, error)
	UpdateReviewStats(ctx context.Context, listingID uint64, average float64, count int) error
}

// Sentimenter scores review text, falling back to neutral.
type Sentimenter interface {
	SentimentOrFallback(ctx context.Context, text string) external.Sentiment
}

// ReviewHandler accepts and lists guest reviews.
type ReviewHandler struct {
	store  ReviewStore
	nlp    Sentimenter
	logger *logrus.Logger
	now    func() time.Time
}

// NewReviewHandler panics on nil dependencies.
func NewReviewHandler(store ReviewStore, nlp Sentimenter, logger *logrus.Logger) *ReviewHandler {
	if store == nil || nlp == nil {
		panic("nil dependency passed to NewReviewHandler")
	}
	return &ReviewHandler{store: store, nlp: nlp, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

type reviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create posts a review. An author may review a listing once per 24
// hours. When a listing already received five approved reviews in the
// last 24 hours the new one is held for moderation.
func (h *ReviewHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return badRequest(c, "rating must be between 1 and 5")
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if len(req.Comment) > maxCommentLength {
		return badRequest(c, "comment too long")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.store.GetListing(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return internalError(c, "load listing failed")
	}

	now := h.now()
	since := now.Add(-reviewCooldown)
	mine, err := h.store.CountByAuthorSince(ctx, listingID, uid, since)
	if err != nil {
		return internalError(c, "check reviews failed")
	}
	if mine > 0 {
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "you already reviewed this listing in the last 24 hours"})
	}
	recent, err := h.store.CountApprovedSince(ctx, listingID, since)
	if err != nil {
		return internalError(c, "check reviews failed")
	}
	status := model.ReviewApproved
	if recent >= reviewBurstThreshold {
		status = model.ReviewPending
	}

	rv := model.Review{
		ListingID: listingID,
		AuthorID:  uid,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Status:    status,
		CreatedAt: now,
	}
	if rv.Comment != "" {
		s := h.nlp.SentimentOrFallback(ctx, rv.Comment)
		rv.SentimentLabel, rv.SentimentScore = s.Label, s.Score
	}
	if err := h.store.CreateReview(ctx, &rv); err != nil {
		h.logger.WithError(err).WithField("listing_id", listingID).Error("create review failed")
		return internalError(c, "create review failed")
	}
	if status == model.ReviewApproved {
		h.refreshStats(ctx, listingID)
	}
	return c.JSON(http.StatusCreated, rv)
}

// refreshStats recomputes the listing's rating aggregates from every
// approved review.
func (h *ReviewHandler) refreshStats(ctx context.Context, listingID uint64) {
	ratings, err := h.store.ApprovedRatings(ctx, listingID, time.Time{})
	if err == nil {
		var sum int
		for _, r := range ratings {
			sum += r
		}
		avg := 0.0
		if len(ratings) > 0 {
			avg = float64(sum) / float64(len(ratings))
		}
		err = h.store.UpdateReviewStats(ctx, listingID, avg, len(ratings))
	}
	if err != nil {
		h.logger.WithError(err).WithField("listing_id", listingID).Warn("review stats not updated")
	}
}

// List returns a listing's approved reviews, newest first.
func (h *ReviewHandler) List(c echo.Context) error {
	listingID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	rs, err := h.store.ReviewsByListing(ctx, listingID)
	if err != nil {
		return internalError(c, "list reviews failed")
	}
	if rs == nil {
		rs = []model.Review{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": rs})
}
