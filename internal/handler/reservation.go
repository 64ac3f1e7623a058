package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/scheduler"
)

// Reservations is implemented by *scheduler.Service.
type Reservations interface {
	Create(ctx context.Context, in scheduler.CreateInput) (*model.Reservation, error)
	Update(ctx context.Context, reservationID, actorID uint64, ch scheduler.Change) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID, actorID uint64) error
	Get(ctx context.Context, reservationID, actorID uint64) (*model.Reservation, error)
	ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error)
	ListByRestaurant(ctx context.Context, restaurantID uint64, f scheduler.ListFilter) ([]model.Reservation, error)
}

// ReservationHandler serves the customer and restaurant reservation routes.
type ReservationHandler struct {
	Svc     Reservations
	Timeout time.Duration
	Log     zerolog.Logger
}

func NewReservationHandler(svc Reservations, timeout time.Duration, log zerolog.Logger) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Timeout: timeout, Log: log}
}

type menuLineReq struct {
	MenuID   uint64 `json:"menuId" validate:"required"`
	Quantity int    `json:"quantity"`
}

type createReservationReq struct {
	RestaurantID uint64        `json:"restaurantId" validate:"required"`
	StartTime    time.Time     `json:"startTime" validate:"required"`
	EndTime      time.Time     `json:"endTime" validate:"required"`
	PartySize    int           `json:"partySize"`
	Menus        []menuLineReq `json:"menus" validate:"dive"`
}

// updateReservationReq distinguishes an absent menus field (nil) from an
// explicit empty list.
type updateReservationReq struct {
	PartySize *int          `json:"partySize"`
	Menus     []menuLineReq `json:"menus" validate:"dive"`
}

func (h *ReservationHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

func toLines(in []menuLineReq) []scheduler.LineInput {
	if in == nil {
		return nil
	}
	out := make([]scheduler.LineInput, 0, len(in))
	for _, m := range in {
		out = append(out, scheduler.LineInput{MenuID: m.MenuID, Quantity: m.Quantity})
	}
	return out
}

func reservationID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Create(ctx, scheduler.CreateInput{
		CustomerID:   actor,
		RestaurantID: req.RestaurantID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		PartySize:    req.PartySize,
		Lines:        toLines(req.Menus),
	})
	if err != nil {
		return schedulerError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Get handles GET /v1/reservations/:id for the owning customer.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := reservationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Get(ctx, id, actor)
	if err != nil {
		return schedulerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update handles PATCH /v1/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	actor, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := reservationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req updateReservationReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Update(ctx, id, actor, scheduler.Change{PartySize: req.PartySize, Lines: toLines(req.Menus)})
	if err != nil {
		return schedulerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := reservationID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.Cancel(ctx, id, actor); err != nil {
		return schedulerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reservation cancelled", "id": id})
}

// ListForCustomer handles GET /v1/reservations/customer.
func (h *ReservationHandler) ListForCustomer(c echo.Context) error {
	actor, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	items, err := h.Svc.ListByCustomer(ctx, actor)
	if err != nil {
		return schedulerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListForRestaurant handles GET /v1/reservations/restaurant with the
// optional phoneNumber, reservationDate, minPartySize and menuName filters.
func (h *ReservationHandler) ListForRestaurant(c echo.Context) error {
	actor, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	f := scheduler.ListFilter{
		PhoneNumber:     strings.TrimSpace(c.QueryParam("phoneNumber")),
		ReservationDate: strings.TrimSpace(c.QueryParam("reservationDate")),
		MenuName:        strings.TrimSpace(c.QueryParam("menuName")),
	}
	if v := strings.TrimSpace(c.QueryParam("minPartySize")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "minPartySize must be an integer >= 1"})
		}
		f.MinPartySize = n
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	items, err := h.Svc.ListByRestaurant(ctx, actor, f)
	if err != nil {
		return schedulerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
