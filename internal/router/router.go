// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers account registration, login and token routes under
// /v1/auth, plus /v1/me for any authenticated caller.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register/customer", a.RegisterCustomer)
	g.POST("/register/restaurant", a.RegisterRestaurant)
	g.POST("/login/customer", a.LoginCustomer)
	g.POST("/login/restaurant", a.LoginRestaurant)
	g.POST("/refresh", a.Refresh)
	// logout takes the refresh token in the body; "all" needs the bearer too
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleRestaurant),
	)
}

// RegisterPublic registers guest browse endpoints.  cache wraps the menu
// listing; pass a pass-through middleware to disable caching.
func RegisterPublic(e *echo.Echo, m *handler.MenuHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/restaurants/:id/menus", m.ListPublic, cache)
}
