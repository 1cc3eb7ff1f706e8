package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterHost registers routes under /v1/host. A host is any user acting
// on listings they own.
func RegisterHost(e *echo.Echo, h Handlers, m Middleware) {
	g := e.Group("/v1/host", m.authed()...)
	g.GET("/listings", h.Listings.Mine)
	g.POST("/bookings/:id/cancel", h.Bookings.HostCancel)
	g.GET("/performance", h.Insights.HostPerformance)
	g.GET("/notifications", h.Insights.HostNotifications)
}
