package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/performance"
	"github.com/iliyamo/stay-reservation/internal/ranking"
	"github.com/iliyamo/stay-reservation/internal/repository"
)

// AnalyticsStore reads listing ownership and counters.
type AnalyticsStore interface {
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	ListingsByOwner(ctx context.Context, ownerID uint64) ([]model.Listing, error)
	GetAnalytics(ctx context.Context, listingID uint64) (model.Analytics, error)
	Overview(ctx context.Context, listingIDs []uint64) (model.Overview, error)
}

// PerformanceReader computes and refreshes performance snapshots.
type PerformanceReader interface {
	Performance(ctx context.Context, listingID uint64, windowDays int) (*model.Performance, error)
	UpdateAllListingScores(ctx context.Context) ([]performance.ScoreResult, error)
	ClearCache(ctx context.Context)
}

// AlertSweeper builds host alerts and runs the notification sweep.
type AlertSweeper interface {
	HostAlerts(ctx context.Context, listings []model.Listing, limit int) []ranking.Notification
	Sweep(ctx context.Context) (int, error)
}

// InsightsHandler serves analytics, performance and host alert endpoints.
type InsightsHandler struct {
	store   AnalyticsStore
	perf    PerformanceReader
	sweeper AlertSweeper
	logger  *logrus.Logger
}

// NewInsightsHandler panics on nil dependencies.
func NewInsightsHandler(store AnalyticsStore, perf PerformanceReader, sweeper AlertSweeper, logger *logrus.Logger) *InsightsHandler {
	if store == nil || perf == nil || sweeper == nil {
		panic("nil dependency passed to NewInsightsHandler")
	}
	return &InsightsHandler{store: store, perf: perf, sweeper: sweeper, logger: logger}
}

// ownedListing loads a listing and checks the caller owns it or is an
// admin. On failure the response has been written and ok is false.
func (h *InsightsHandler) ownedListing(ctx context.Context, c echo.Context) (l *model.Listing, ok bool, err error) {
	uid, uerr := getUserID(c)
	if uerr != nil {
		return nil, false, unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return nil, false, badRequest(c, "invalid listing id")
	}
	l, err = h.store.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return nil, false, internalError(c, "load listing failed")
	}
	if l.OwnerID != uid && !isAdmin(c) {
		return nil, false, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return l, true, nil
}

// ListingAnalytics returns a listing's counters to its owner or an admin.
func (h *InsightsHandler) ListingAnalytics(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	l, ok, err := h.ownedListing(ctx, c)
	if !ok {
		return err
	}
	a, err := h.store.GetAnalytics(ctx, l.ID)
	if err != nil {
		return internalError(c, "load analytics failed")
	}
	return c.JSON(http.StatusOK, a)
}

// Dashboard sums counters over every listing for admins and over the
// caller's own listings otherwise.
func (h *InsightsHandler) Dashboard(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var ids []uint64
	if !isAdmin(c) {
		owned, err := h.store.ListingsByOwner(ctx, uid)
		if err != nil {
			return internalError(c, "list listings failed")
		}
		ids = make([]uint64, 0, len(owned))
		for _, l := range owned {
			ids = append(ids, l.ID)
		}
	}
	o, err := h.store.Overview(ctx, ids)
	if err != nil {
		return internalError(c, "load overview failed")
	}
	return c.JSON(http.StatusOK, o)
}

// ListingPerformance returns one listing's snapshot over ?days (default 30).
func (h *InsightsHandler) ListingPerformance(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	l, ok, err := h.ownedListing(ctx, c)
	if !ok {
		return err
	}
	p, err := h.perf.Performance(ctx, l.ID, queryInt(c, "days", performance.DefaultWindowDays, 1, 365))
	if err != nil {
		h.logger.WithError(err).WithField("listing_id", l.ID).Error("performance failed")
		return internalError(c, "performance failed")
	}
	return c.JSON(http.StatusOK, p)
}

// HostPerformance returns snapshots for every listing the caller owns,
// worst first. Listings whose snapshot fails are left out.
func (h *InsightsHandler) HostPerformance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	owned, err := h.store.ListingsByOwner(ctx, uid)
	if err != nil {
		return internalError(c, "list listings failed")
	}
	days := queryInt(c, "days", performance.DefaultWindowDays, 1, 365)
	out := make([]*model.Performance, 0, len(owned))
	for _, l := range owned {
		p, err := h.perf.Performance(ctx, l.ID, days)
		if err != nil {
			h.logger.WithError(err).WithField("listing_id", l.ID).Warn("performance failed")
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metrics.PerformanceScore < out[j].Metrics.PerformanceScore
	})
	return c.JSON(http.StatusOK, echo.Map{"listings": out})
}

// HostNotifications lists alerts for the caller's weak listings.
func (h *InsightsHandler) HostNotifications(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	owned, err := h.store.ListingsByOwner(ctx, uid)
	if err != nil {
		return internalError(c, "list listings failed")
	}
	alerts := h.sweeper.HostAlerts(ctx, owned, queryInt(c, "limit", 10, 1, 100))
	return c.JSON(http.StatusOK, echo.Map{"notifications": alerts, "count": len(alerts)})
}

// PerformanceCheck runs the notification sweep now. Admin only.
func (h *InsightsHandler) PerformanceCheck(c echo.Context) error {
	sent, err := h.sweeper.Sweep(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Error("performance check failed")
		return internalError(c, "performance check failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications_sent": sent})
}

// RefreshScores recomputes every ranking score now. Admin only.
func (h *InsightsHandler) RefreshScores(c echo.Context) error {
	h.perf.ClearCache(c.Request().Context())
	results, err := h.perf.UpdateAllListingScores(c.Request().Context())
	resp := echo.Map{"updated": results}
	if err != nil {
		h.logger.WithError(err).Warn("score refresh incomplete")
		if len(results) == 0 {
			return internalError(c, "score refresh failed")
		}
		resp["error"] = "some listings could not be scored"
	}
	return c.JSON(http.StatusOK, resp)
}
