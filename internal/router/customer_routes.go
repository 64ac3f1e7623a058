package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// RegisterCustomer registers customer-scoped reservation endpoints
// under /v1.  All routes require a valid JWT and the CUSTOMER role; ownership
// of a specific reservation is checked by the scheduler.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.POST("/reservations", h.Create)
	g.GET("/reservations/customer", h.ListForCustomer)
	g.GET("/reservations/:id", h.Get)
	g.PATCH("/reservations/:id", h.Update)
	g.DELETE("/reservations/:id", h.Cancel)
}
