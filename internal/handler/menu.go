package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// Menus is implemented by repository.MenuRepo.
type Menus interface {
	Create(ctx context.Context, m *model.Menu) error
	ListByRestaurant(ctx context.Context, restaurantID uint64, q repository.MenuSearchQuery) ([]model.Menu, error)
	DeleteOwned(ctx context.Context, menuID, restaurantID uint64) error
}

// MenuCache is implemented by middleware.CacheInvalidator.
type MenuCache interface {
	Invalidate(ctx context.Context, path string) error
}

// MenuHandler serves the restaurant's catalog routes and the public browse
// route.  When Cache is set, menu writes drop the cached public listing.
type MenuHandler struct {
	Menus       Menus
	Restaurants RestaurantAccounts
	Cache       MenuCache
	Timeout     time.Duration
	Log         zerolog.Logger
}

func NewMenuHandler(m Menus, r RestaurantAccounts, timeout time.Duration, log zerolog.Logger) *MenuHandler {
	return &MenuHandler{Menus: m, Restaurants: r, Timeout: timeout, Log: log}
}

type createMenuReq struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Price       *int64  `json:"price" validate:"required,gte=0,lte=4294967295"`
	Category    string  `json:"category" validate:"required,menu_category"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (h *MenuHandler) invalidate(ctx context.Context, restaurantID uint64) {
	if h.Cache == nil {
		return
	}
	path := fmt.Sprintf("/v1/restaurants/%d/menus", restaurantID)
	if err := h.Cache.Invalidate(context.WithoutCancel(ctx), path); err != nil {
		h.Log.Warn().Err(err).Str("path", path).Msg("menu cache invalidation failed")
	}
}

func (h *MenuHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// Create handles POST /v1/menus for the authenticated restaurant.
func (h *MenuHandler) Create(c echo.Context) error {
	owner, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createMenuReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	m := &model.Menu{
		RestaurantID: owner,
		Name:         strings.TrimSpace(req.Name),
		Price:        uint32(*req.Price),
		Category:     req.Category,
		Description:  req.Description,
	}
	if err := h.Menus.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "restaurant not found"})
		}
		h.Log.Error().Err(err).Msg("create menu")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create menu failed"})
	}
	h.invalidate(ctx, owner)
	return c.JSON(http.StatusCreated, m)
}

// ListOwn handles GET /v1/menus with optional name, minPrice and maxPrice.
func (h *MenuHandler) ListOwn(c echo.Context) error {
	owner, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.list(c, owner)
}

// ListPublic handles GET /v1/restaurants/:id/menus.
func (h *MenuHandler) ListPublic(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid restaurant id"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if _, err := h.Restaurants.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "restaurant not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return h.list(c, id)
}

func (h *MenuHandler) list(c echo.Context, restaurantID uint64) error {
	q := repository.MenuSearchQuery{Name: strings.TrimSpace(c.QueryParam("name"))}
	var err error
	if q.MinPrice, err = priceParam(c, "minPrice"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if q.MaxPrice, err = priceParam(c, "maxPrice"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "minPrice must not exceed maxPrice"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	items, err := h.Menus.ListByRestaurant(ctx, restaurantID, q)
	if err != nil {
		h.Log.Error().Err(err).Msg("list menus")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Delete handles DELETE /v1/menus/:id.  Only the owning restaurant may
// delete; lines referencing the menu are removed with it.
func (h *MenuHandler) Delete(c echo.Context) error {
	owner, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid menu id"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	switch err := h.Menus.DeleteOwned(ctx, id, owner); {
	case err == nil:
		h.invalidate(ctx, owner)
		return c.JSON(http.StatusOK, echo.Map{"message": "menu deleted", "id": id})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "menu not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "menu belongs to another restaurant"})
	default:
		h.Log.Error().Err(err).Msg("delete menu")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete menu failed"})
	}
}

func priceParam(c echo.Context, name string) (*uint32, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return nil, errors.New(name + " must be a non-negative integer")
	}
	p := uint32(n)
	return &p, nil
}
