package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/ranking"
	"github.com/iliyamo/stay-reservation/internal/repository"
)

// ListingStore is the listing storage used by ListingHandler.
type ListingStore interface {
	ListListings(ctx context.Context) ([]model.Listing, error)
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	ListingsByOwner(ctx context.Context, ownerID uint64) ([]model.Listing, error)
	CreateListing(ctx context.Context, l *model.Listing) error
	IncrementViews(ctx context.Context, listingID uint64) error
}

// ScoreRefresher schedules a background recomputation of ranking scores.
type ScoreRefresher interface {
	Enqueue() bool
}

// ListingHandler serves the listing index, detail and creation.
type ListingHandler struct {
	store     ListingStore
	refresher ScoreRefresher
	logger    *logrus.Logger
}

// NewListingHandler panics if store is nil. refresher may be nil.
func NewListingHandler(store ListingStore, refresher ScoreRefresher, logger *logrus.Logger) *ListingHandler {
	if store == nil {
		panic("nil store passed to NewListingHandler")
	}
	return &ListingHandler{store: store, refresher: refresher, logger: logger}
}

type createListingReq struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Location     string  `json:"location"`
	Country      string  `json:"country"`
	ImageURL     string  `json:"image_url"`
	NightlyPrice float64 `json:"nightly_price"`
}

// Index lists listings matching q, best ranked first, each decorated with
// its performance badge. Every call also nudges the score refresher.
func (h *ListingHandler) Index(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	all, err := h.store.ListListings(ctx)
	if err != nil {
		h.logger.WithError(err).Error("list listings failed")
		return internalError(c, "list listings failed")
	}
	ranked := ranking.Rank(ranking.Filter(all, c.QueryParam("q")))
	if limit := queryInt(c, "limit", 0, 0, 100); limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if h.refresher != nil {
		h.refresher.Enqueue()
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": ranked, "count": len(ranked)})
}

// Show returns one listing and counts the view.
func (h *ListingHandler) Show(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	l, err := h.store.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return internalError(c, "load listing failed")
	}
	if err := h.store.IncrementViews(ctx, id); err != nil {
		h.logger.WithError(err).WithField("listing_id", id).Warn("view counter not updated")
	}
	ranked := ranking.Rank([]model.Listing{*l})
	return c.JSON(http.StatusOK, ranked[0])
}

// Create adds a listing owned by the caller.
func (h *ListingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createListingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	if req.Title == "" || req.Location == "" {
		return badRequest(c, "title and location required")
	}
	if req.NightlyPrice <= 0 {
		return badRequest(c, "nightly_price must be positive")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	l := model.Listing{
		OwnerID:      uid,
		Title:        req.Title,
		Description:  strings.TrimSpace(req.Description),
		Location:     req.Location,
		Country:      strings.TrimSpace(req.Country),
		ImageURL:     strings.TrimSpace(req.ImageURL),
		NightlyPrice: req.NightlyPrice,
	}
	if err := h.store.CreateListing(ctx, &l); err != nil {
		h.logger.WithError(err).Error("create listing failed")
		return internalError(c, "create listing failed")
	}
	return c.JSON(http.StatusCreated, l)
}

// Mine lists the caller's own listings.
func (h *ListingHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	ls, err := h.store.ListingsByOwner(ctx, uid)
	if err != nil {
		return internalError(c, "list listings failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": ranking.Rank(ls)})
}
