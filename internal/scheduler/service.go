// Package scheduler decides whether a reservation may occupy a restaurant's
// time slot and performs reservation writes as all-or-nothing transactions.
//
// Every operation receives an already authenticated actor.  Ownership of a
// reservation is re-checked here even though routes are role gated.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/metrics"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// Store is the persistence the scheduler needs.  repository.ReservationRepo
// is the MySQL implementation.
type Store interface {
	OverlapQuerier
	WithinTx(ctx context.Context, fn func(repository.Tx) error) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	Delete(ctx context.Context, id uint64) error
	ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error)
	ListByRestaurant(ctx context.Context, restaurantID uint64, f repository.ReservationFilter) ([]model.Reservation, error)
}

// EventPublisher receives reservation events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// LineInput is one requested menu selection.  A zero Quantity means 1.
type LineInput struct {
	MenuID   uint64
	Quantity int
}

// CreateInput describes a new reservation.  CustomerID is the authenticated
// actor, never client input.
type CreateInput struct {
	CustomerID   uint64
	RestaurantID uint64
	StartTime    time.Time
	EndTime      time.Time
	PartySize    int
	Lines        []LineInput
}

// Change is a partial update.  A nil PartySize leaves it unchanged.  A nil
// Lines leaves the lines unchanged; a non-nil Lines, even empty, replaces
// the whole set.
type Change struct {
	PartySize *int
	Lines     []LineInput
}

// ListFilter holds the optional restaurant list filters.  ReservationDate is
// a calendar day "YYYY-MM-DD" in the service's location.
type ListFilter struct {
	PhoneNumber     string
	ReservationDate string
	MinPartySize    int
	MenuName        string
}

// Service implements reservation scheduling on top of a Store.
type Service struct {
	store      Store
	events     EventPublisher
	now        func() time.Time
	loc        *time.Location
	log        zerolog.Logger
	pubTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithPublisher enables reservation events.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.events = p } }

// WithLocation sets the timezone used to interpret ReservationDate.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// NewService returns a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		now:        time.Now,
		loc:        time.UTC,
		log:        zerolog.Nop(),
		pubTimeout: 3 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create books [StartTime, EndTime) at the restaurant.  The restaurant row is
// locked for the duration of the overlap check and the inserts, so two
// concurrent creates for one restaurant cannot both succeed on overlapping
// slots.
func (s *Service) Create(ctx context.Context, in CreateInput) (res *model.Reservation, err error) {
	defer func() { record("create", err) }()

	now := s.now()
	start, end := normalizeTime(in.StartTime), normalizeTime(in.EndTime)
	if err := checkTimes(start, end, now); err != nil {
		return nil, err
	}
	if in.PartySize < 1 {
		return nil, ErrInvalidPartySize
	}
	lines, err := normalizeLines(in.Lines)
	if err != nil {
		return nil, err
	}

	res = &model.Reservation{
		RestaurantID: in.RestaurantID,
		CustomerID:   in.CustomerID,
		StartTime:    start,
		EndTime:      end,
		PartySize:    in.PartySize,
	}
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockRestaurant(ctx, in.RestaurantID); err != nil {
			if errors.Is(err, repository.ErrRestaurantNotFound) {
				return ErrRestaurantNotFound
			}
			return storeErr("lock restaurant", err)
		}
		if err := CheckSlot(ctx, tx, in.RestaurantID, start, end, now, 0); err != nil {
			return err
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return storeErr("insert reservation", err)
		}
		rows := toRows(res.ID, lines)
		if err := tx.InsertLines(ctx, rows); err != nil {
			return lineErr(err)
		}
		res.Lines = rows
		return nil
	})
	if err != nil {
		return nil, commitErr(err)
	}
	s.publish(ctx, queue.EventReservationCreated, res)
	return res, nil
}

// Update changes the party size and/or replaces the lines of the actor's
// reservation.  The time window is never changed.
func (s *Service) Update(ctx context.Context, reservationID, actorID uint64, ch Change) (res *model.Reservation, err error) {
	defer func() { record("update", err) }()

	if _, err := s.owned(ctx, reservationID, actorID); err != nil {
		return nil, err
	}
	if ch.PartySize != nil && *ch.PartySize < 1 {
		return nil, ErrInvalidPartySize
	}
	var lines []LineInput
	if ch.Lines != nil {
		if lines, err = normalizeLines(ch.Lines); err != nil {
			return nil, err
		}
	}

	if ch.PartySize == nil && ch.Lines == nil {
		res, err = s.store.GetByID(ctx, reservationID)
		if err != nil {
			return nil, readErr("reload reservation", err)
		}
		return res, nil
	}

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		owner, err := tx.LockReservation(ctx, reservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return storeErr("lock reservation", err)
		}
		if owner != actorID {
			return ErrForbidden
		}
		if ch.PartySize != nil {
			if err := tx.UpdatePartySize(ctx, reservationID, *ch.PartySize); err != nil {
				return storeErr("update party size", err)
			}
		}
		if ch.Lines != nil {
			if _, err := tx.DeleteLines(ctx, reservationID); err != nil {
				return storeErr("delete lines", err)
			}
			if err := tx.InsertLines(ctx, toRows(reservationID, lines)); err != nil {
				return lineErr(err)
			}
		}
		// reload under the row lock so the result is exactly this update
		res, err = tx.GetByID(ctx, reservationID)
		if err != nil {
			return readErr("reload reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, commitErr(err)
	}
	s.publish(ctx, queue.EventReservationUpdated, res)
	return res, nil
}

// Cancel deletes the actor's reservation together with its lines.
func (s *Service) Cancel(ctx context.Context, reservationID, actorID uint64) (err error) {
	defer func() { record("cancel", err) }()

	res, err := s.owned(ctx, reservationID, actorID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, reservationID); err != nil {
		return readErr("delete reservation", err)
	}
	res.Lines = nil
	s.publish(ctx, queue.EventReservationCancelled, res)
	return nil
}

// Get returns the actor's reservation with its lines.
func (s *Service) Get(ctx context.Context, reservationID, actorID uint64) (*model.Reservation, error) {
	return s.owned(ctx, reservationID, actorID)
}

// ListByCustomer returns every reservation of the customer, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
	out, err := s.store.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, storeErr("list by customer", err)
	}
	return out, nil
}

// ListByRestaurant returns the restaurant's reservations matching every
// supplied filter, ordered by start time.
func (s *Service) ListByRestaurant(ctx context.Context, restaurantID uint64, f ListFilter) ([]model.Reservation, error) {
	rf := repository.ReservationFilter{
		PhoneNumber: f.PhoneNumber,
		MenuName:    f.MenuName,
	}
	if f.MinPartySize < 0 {
		return nil, fmt.Errorf("%w: minPartySize must be at least 1", ErrInvalidFilter)
	}
	rf.MinPartySize = f.MinPartySize
	if f.ReservationDate != "" {
		day, err := time.ParseInLocation(time.DateOnly, f.ReservationDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: reservationDate must be YYYY-MM-DD", ErrInvalidFilter)
		}
		from := day.UTC()
		to := day.AddDate(0, 0, 1).Add(-time.Millisecond).UTC()
		rf.From, rf.To = &from, &to
	}
	out, err := s.store.ListByRestaurant(ctx, restaurantID, rf)
	if err != nil {
		return nil, storeErr("list by restaurant", err)
	}
	return out, nil
}

// owned loads a reservation and checks that actorID owns it.
func (s *Service) owned(ctx context.Context, reservationID, actorID uint64) (*model.Reservation, error) {
	res, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, readErr("load reservation", err)
	}
	if res.CustomerID != actorID {
		return nil, ErrForbidden
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, typ string, res *model.Reservation) {
	if s.events == nil {
		return
	}
	ev := queue.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		ReservationID: res.ID,
		CustomerID:    res.CustomerID,
		RestaurantID:  res.RestaurantID,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		PartySize:     res.PartySize,
		OccurredAt:    s.now().UTC(),
	}
	for _, l := range res.Lines {
		ev.Lines = append(ev.Lines, queue.EventLine{MenuID: l.MenuID, Quantity: l.Quantity})
	}
	// the write has committed; the request context may already be done
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pubTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", typ).Uint64("reservation_id", res.ID).Msg("publish reservation event")
	}
}

// normalizeTime converts to UTC at the millisecond precision the store keeps.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func normalizeLines(in []LineInput) ([]LineInput, error) {
	out := make([]LineInput, 0, len(in))
	seen := make(map[uint64]struct{}, len(in))
	for _, l := range in {
		if l.MenuID == 0 {
			return nil, ErrUnknownMenu
		}
		if l.Quantity < 0 {
			return nil, ErrInvalidQuantity
		}
		if l.Quantity == 0 {
			l.Quantity = 1
		}
		if _, dup := seen[l.MenuID]; dup {
			return nil, fmt.Errorf("%w: menu %d", ErrDuplicateMenu, l.MenuID)
		}
		seen[l.MenuID] = struct{}{}
		out = append(out, l)
	}
	return out, nil
}

func toRows(reservationID uint64, lines []LineInput) []model.ReservationLine {
	rows := make([]model.ReservationLine, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, model.ReservationLine{ReservationID: reservationID, MenuID: l.MenuID, Quantity: l.Quantity})
	}
	return rows
}

func storeErr(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransactionFailure, step, err)
}

func lineErr(err error) error {
	if errors.Is(err, repository.ErrForeignKey) {
		return ErrUnknownMenu
	}
	return storeErr("insert lines", err)
}

// commitErr keeps classified errors from inside the transaction and wraps
// begin/commit failures.
func commitErr(err error) error {
	if classified(err) {
		return err
	}
	return storeErr("transaction", err)
}

func readErr(step string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return storeErr(step, err)
}

// record counts the outcome of op by error kind.
func record(op string, err error) {
	metrics.IncReservationOp(op, Outcome(err))
}

// Outcome returns a stable label for err: "ok" for nil, otherwise the kind.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrPastStartTime):
		return "past_start_time"
	case errors.Is(err, ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRestaurantNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTransactionFailure):
		return "transaction_failure"
	default:
		return "invalid_request"
	}
}
