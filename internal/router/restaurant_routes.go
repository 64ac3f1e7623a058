package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// RegisterRestaurant registers RESTAURANT-scoped endpoints under /v1: the
// menu catalog and the filtered reservation list.
func RegisterRestaurant(e *echo.Echo, r *handler.ReservationHandler, m *handler.MenuHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleRestaurant),
	)

	// ---- Menus ----
	g.POST("/menus", m.Create)
	g.GET("/menus", m.ListOwn)
	g.DELETE("/menus/:id", m.Delete)

	// ---- Reservations ----
	g.GET("/reservations/restaurant", r.ListForRestaurant)
}
