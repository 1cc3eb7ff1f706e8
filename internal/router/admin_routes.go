package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stay-reservation/internal/middleware"
	"github.com/iliyamo/stay-reservation/internal/model"
)

// RegisterAdmin registers routes under /v1/admin. All require the ADMIN
// role.
func RegisterAdmin(e *echo.Echo, h Handlers, m Middleware) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(m.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/coupons", h.Coupons.List)
	g.POST("/coupons", h.Coupons.Create)
	g.PATCH("/coupons/:id/toggle", h.Coupons.Toggle)
	g.DELETE("/coupons/:id", h.Coupons.Delete)

	g.POST("/bookings/:id/complete", h.Bookings.Complete)
	g.POST("/bookings/:id/refund", h.Bookings.Refund)

	g.POST("/performance-check", h.Insights.PerformanceCheck)
	g.POST("/performance/refresh", h.Insights.RefreshScores)
}
