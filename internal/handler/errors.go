package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/scheduler"
)

// statusFor maps scheduler error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrTransactionFailure):
		return http.StatusInternalServerError
	case errors.Is(err, scheduler.ErrSlotConflict):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, scheduler.ErrNotFound), errors.Is(err, scheduler.ErrRestaurantNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrInvalidInterval),
		errors.Is(err, scheduler.ErrPastStartTime),
		errors.Is(err, scheduler.ErrInvalidPartySize),
		errors.Is(err, scheduler.ErrInvalidQuantity),
		errors.Is(err, scheduler.ErrDuplicateMenu),
		errors.Is(err, scheduler.ErrUnknownMenu),
		errors.Is(err, scheduler.ErrInvalidFilter):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// schedulerError writes err as {"error": ...}.  Internal failures are logged
// and reported without their cause.
func schedulerError(c echo.Context, log zerolog.Logger, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Msg("reservation operation failed")
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
