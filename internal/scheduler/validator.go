package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// OverlapQuerier finds reservations at a restaurant intersecting [start, end).
// A non-zero excludeID leaves that reservation out, which lets a caller
// re-check a reservation's own slot.
type OverlapQuerier interface {
	FindOverlapping(ctx context.Context, restaurantID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error)
}

// checkTimes validates a requested interval against now.
func checkTimes(start, end, now time.Time) error {
	// compare at the precision the store keeps
	start, end, now = normalizeTime(start), normalizeTime(end), normalizeTime(now)
	if start.Before(now) {
		return ErrPastStartTime
	}
	if !end.After(start) {
		return ErrInvalidInterval
	}
	return nil
}

// CheckSlot decides whether [start, end) may be booked at restaurantID.  It
// returns nil when the start is in the future, the interval has positive
// length and no other reservation intersects it.  Back-to-back bookings are
// allowed.
//
// CheckSlot alone does not prevent a concurrent writer from taking the slot
// between the check and an insert.  Service.Create runs it under the
// restaurant lock.
func CheckSlot(ctx context.Context, q OverlapQuerier, restaurantID uint64, start, end, now time.Time, excludeID uint64) error {
	if err := checkTimes(start, end, now); err != nil {
		return err
	}
	found, err := q.FindOverlapping(ctx, restaurantID, start, end, excludeID)
	if err != nil {
		return fmt.Errorf("%w: overlap query: %w", ErrTransactionFailure, err)
	}
	if len(found) > 0 {
		return fmt.Errorf("%w: %d conflicting", ErrSlotConflict, len(found))
	}
	return nil
}
