package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterUser registers routes for any signed-in user: booking, reviews,
// listing creation and search feedback. Ownership is checked in the
// handlers.
func RegisterUser(e *echo.Echo, h Handlers, m Middleware) {
	auth := m.authed()
	writes := m.writes()

	e.POST("/v1/bookings", h.Bookings.Create, writes...)
	e.GET("/v1/bookings", h.Bookings.List, auth...)
	e.GET("/v1/bookings/:id", h.Bookings.Get, auth...)
	e.POST("/v1/bookings/:id/cancel", h.Bookings.GuestCancel, writes...)

	e.POST("/v1/listings", h.Listings.Create, writes...)
	e.POST("/v1/listings/:id/reviews", h.Reviews.Create, writes...)
	e.GET("/v1/listings/:id/performance", h.Insights.ListingPerformance, auth...)

	e.POST("/v1/search/feedback", h.Search.Feedback, auth...)
	e.GET("/v1/search/analytics", h.Search.Analytics, auth...)

	e.GET("/v1/analytics/listings/:id", h.Insights.ListingAnalytics, auth...)
	e.GET("/v1/analytics/dashboard", h.Insights.Dashboard, auth...)
}
