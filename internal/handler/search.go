package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/external"
	"github.com/iliyamo/stay-reservation/internal/model"
)

// InteractionStore is the search interaction log.
type InteractionStore interface {
	CreateInteraction(ctx context.Context, in *model.SearchInteraction) error
	AggregateInteractions(ctx context.Context, limit int) ([]model.InteractionStats, error)
}

// SearchHandler proxies ranking to the bandit service and records
// feedback for it.
type SearchHandler struct {
	store  InteractionStore
	client *external.Client
	logger *logrus.Logger
}

// NewSearchHandler panics on nil dependencies.
func NewSearchHandler(store InteractionStore, client *external.Client, logger *logrus.Logger) *SearchHandler {
	if store == nil || client == nil {
		panic("nil dependency passed to NewSearchHandler")
	}
	return &SearchHandler{store: store, client: client, logger: logger}
}

type rankReq struct {
	ListingIDs model.IDList             `json:"listingIds"`
	Context    model.InteractionContext `json:"context"`
}

type feedbackReq struct {
	ListingID uint64                   `json:"listingId"`
	Action    string                   `json:"action"`
	Context   model.InteractionContext `json:"context"`
}

// Rank orders the given listing ids for the caller. It never fails on a
// ranking service outage; the input order is returned instead.
func (h *SearchHandler) Rank(c echo.Context) error {
	var req rankReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.ListingIDs) == 0 {
		return badRequest(c, "listingIds required")
	}
	uid, _ := getUserID(c)
	res := h.client.RankOrFallback(c.Request().Context(), external.RankRequest{
		UserID:     uid,
		ListingIDs: req.ListingIDs,
		Context:    req.Context,
	})
	return c.JSON(http.StatusOK, res)
}

// Feedback records an interaction and forwards its reward to the bandit.
// Forwarding is best effort and happens after the response is decided.
func (h *SearchHandler) Feedback(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req feedbackReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ListingID == 0 {
		return badRequest(c, "listingId required")
	}
	action, err := model.ParseAction(req.Action)
	if err != nil {
		return badRequest(c, "action must be view, click or book")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	in := model.SearchInteraction{
		UserID:    uid,
		ListingID: req.ListingID,
		Action:    action,
		Context:   req.Context,
		Reward:    action.Reward(),
	}
	if err := h.store.CreateInteraction(ctx, &in); err != nil {
		h.logger.WithError(err).Error("record interaction failed")
		return internalError(c, "record interaction failed")
	}
	if err := h.client.SendFeedback(ctx, external.Feedback{
		UserID:    uid,
		ListingID: in.ListingID,
		Action:    action,
		Reward:    in.Reward,
		Context:   in.Context,
	}); err != nil {
		h.logger.WithError(err).WithField("listing_id", in.ListingID).Warn("bandit feedback not delivered")
	}
	return c.JSON(http.StatusCreated, echo.Map{"recorded": true, "reward": in.Reward})
}

// Analytics returns interaction aggregates, top 50 listings by reward.
func (h *SearchHandler) Analytics(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.store.AggregateInteractions(ctx, 50)
	if err != nil {
		return internalError(c, "aggregate interactions failed")
	}
	if stats == nil {
		stats = []model.InteractionStats{}
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": stats})
}

type riskReq struct {
	Price              float64 `json:"price"`
	DaysUntilCheckIn   int     `json:"days_until_checkin"`
	IsNewUser          bool    `json:"is_new_user"`
	PriorCancellations int     `json:"prior_cancellations"`
}

// Risk scores a prospective booking's cancellation risk. Failures of the
// scoring service yield {"risk":"unknown","score":0}.
func (h *SearchHandler) Risk(c echo.Context) error {
	var req riskReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Price < 0 || req.DaysUntilCheckIn < 0 || req.PriorCancellations < 0 {
		return badRequest(c, "values cannot be negative")
	}
	r := h.client.RiskOrFallback(c.Request().Context(), external.RiskRequest(req))
	return c.JSON(http.StatusOK, r)
}
