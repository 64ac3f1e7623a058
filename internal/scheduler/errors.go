package scheduler

import "errors"

// Error kinds returned by Service.  Callers compare with errors.Is; store
// failures are wrapped in ErrTransactionFailure and keep their cause.
var (
	ErrInvalidInterval    = errors.New("end time must be after start time")
	ErrPastStartTime      = errors.New("start time must be in the future")
	ErrInvalidPartySize   = errors.New("party size must be at least 1")
	ErrInvalidQuantity    = errors.New("menu quantity must be at least 1")
	ErrDuplicateMenu      = errors.New("menu listed more than once")
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrSlotConflict       = errors.New("time slot overlaps an existing reservation")
	ErrNotFound           = errors.New("reservation not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrUnknownMenu        = errors.New("menu does not exist")
	ErrForbidden          = errors.New("reservation belongs to another customer")
	ErrTransactionFailure = errors.New("reservation transaction failed")
)

var kinds = []error{
	ErrInvalidInterval, ErrPastStartTime, ErrInvalidPartySize, ErrInvalidQuantity,
	ErrDuplicateMenu, ErrInvalidFilter, ErrSlotConflict, ErrNotFound,
	ErrRestaurantNotFound, ErrUnknownMenu, ErrForbidden, ErrTransactionFailure,
}

// classified reports whether err already carries one of the kinds above.
func classified(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
