// Package router registers every HTTP route and its middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stay-reservation/internal/handler"
	"github.com/iliyamo/stay-reservation/internal/middleware"
	"github.com/iliyamo/stay-reservation/internal/model"
)

// Handlers groups the endpoint implementations.
type Handlers struct {
	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler
	Listings *handler.ListingHandler
	Search   *handler.SearchHandler
	Reviews  *handler.ReviewHandler
	Coupons  *handler.CouponHandler
	Insights *handler.InsightsHandler
}

// Middleware carries the shared middleware built in main. Nil entries
// are skipped.
type Middleware struct {
	JWTSecret  string
	RateLimit  echo.MiddlewareFunc
	WriteLimit echo.MiddlewareFunc
	Cache      echo.MiddlewareFunc
}

func (m Middleware) authed() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(m.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	}
}

func (m Middleware) optional() echo.MiddlewareFunc {
	return middleware.OptionalJWT(m.JWTSecret)
}

func (m Middleware) writes() []echo.MiddlewareFunc {
	mws := m.authed()
	if m.WriteLimit != nil {
		mws = append(mws, m.WriteLimit)
	}
	return mws
}

func (m Middleware) cached() []echo.MiddlewareFunc {
	if m.Cache == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m.Cache}
}

// Register wires every route onto e.
func Register(e *echo.Echo, h Handlers, m Middleware) {
	e.GET("/healthz", handler.Health)
	if m.RateLimit != nil {
		e.Use(m.RateLimit)
	}
	RegisterAuth(e, h.Auth, m)
	RegisterPublic(e, h, m)
	RegisterUser(e, h, m)
	RegisterHost(e, h, m)
	RegisterAdmin(e, h, m)
}

// RegisterAuth registers account and session routes under /v1/auth plus
// the authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, m Middleware) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, m.optional())

	e.GET("/v1/me", a.Me, m.authed()...)
}

// RegisterPublic registers browse, quote, ranking and risk routes that
// work without a session.
func RegisterPublic(e *echo.Echo, h Handlers, m Middleware) {
	e.GET("/v1/listings", h.Listings.Index, m.cached()...)
	e.GET("/v1/listings/:id", h.Listings.Show)
	e.GET("/v1/listings/:id/reviews", h.Reviews.List, m.cached()...)

	e.POST("/v1/bookings/quote", h.Bookings.Quote, m.optional())
	e.POST("/v1/search/rank", h.Search.Rank, m.optional())
	e.POST("/v1/risk/score", h.Search.Risk)
}
