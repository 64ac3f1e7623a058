package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// memStore is an in-memory Store.  Writes inside a transaction go to a
// per-transaction overlay that only the transaction itself reads (through
// Tx.GetByID); the overlay is applied at commit.  LockRestaurant and
// LockReservation hold a per-row mutex until the transaction ends, the way
// InnoDB row locks do.
type memStore struct {
	mu           sync.Mutex
	nextID       uint64
	epoch        time.Time
	restaurants  map[uint64]string
	menus        map[uint64]model.MenuRef
	customers    map[uint64]model.CustomerRef
	reservations map[uint64]model.Reservation
	lines        map[uint64][]model.ReservationLine
	rowLocks     map[string]*sync.Mutex

	failOn    string
	lockCalls int
	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		epoch:        time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		restaurants:  map[uint64]string{},
		menus:        map[uint64]model.MenuRef{},
		customers:    map[uint64]model.CustomerRef{},
		reservations: map[uint64]model.Reservation{},
		lines:        map[uint64][]model.ReservationLine{},
		rowLocks:     map[string]*sync.Mutex{},
	}
}

func (s *memStore) addRestaurant(id uint64, name string) { s.restaurants[id] = name }

func (s *memStore) addMenu(id uint64, name string, price uint32) {
	s.menus[id] = model.MenuRef{ID: id, Name: name, Price: price, Category: "기타"}
}

func (s *memStore) addCustomer(id uint64, name, phone string) {
	s.customers[id] = model.CustomerRef{ID: id, Name: name, PhoneNumber: phone}
}

func (s *memStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rowLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[key] = m
	}
	return m
}

func (s *memStore) lineCount(reservationID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines[reservationID])
}

func (s *memStore) WithinTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx := &memTx{s: s, rows: map[uint64]model.Reservation{}, lines: map[uint64][]model.ReservationLine{}}
	defer tx.release()
	if err := fn(tx); err != nil {
		s.mu.Lock()
		s.rollbacks++
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range tx.rows {
		s.reservations[id] = r
	}
	for id, ls := range tx.lines {
		if len(ls) == 0 {
			delete(s.lines, id)
			continue
		}
		s.lines[id] = ls
	}
	s.commits++
	return nil
}

func (s *memStore) FindOverlapping(ctx context.Context, restaurantID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapping(restaurantID, start, end, excludeID), nil
}

func (s *memStore) overlapping(restaurantID uint64, start, end time.Time, excludeID uint64) []model.Reservation {
	out := []model.Reservation{}
	for _, r := range s.reservations {
		if r.RestaurantID == restaurantID && r.ID != excludeID && r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s.detail(r)
	return &out, nil
}

// detail copies r with its lines and references; callers hold s.mu.
func (s *memStore) detail(r model.Reservation) model.Reservation {
	return s.detailWith(r, s.lines[r.ID])
}

func (s *memStore) detailWith(r model.Reservation, lines []model.ReservationLine) model.Reservation {
	r.Lines = []model.ReservationLine{}
	for _, l := range lines {
		m := s.menus[l.MenuID]
		l.Menu = &m
		r.Lines = append(r.Lines, l)
	}
	sort.Slice(r.Lines, func(i, j int) bool { return r.Lines[i].MenuID < r.Lines[j].MenuID })
	r.Restaurant = &model.RestaurantRef{ID: r.RestaurantID, Name: s.restaurants[r.RestaurantID]}
	if c, ok := s.customers[r.CustomerID]; ok {
		r.Customer = &c
	}
	return r
}

func (s *memStore) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.reservations, id)
	delete(s.lines, id)
	return nil
}

func (s *memStore) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range s.reservations {
		if r.CustomerID == customerID {
			out = append(out, s.detail(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memStore) ListByRestaurant(ctx context.Context, restaurantID uint64, f repository.ReservationFilter) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range s.reservations {
		if r.RestaurantID != restaurantID {
			continue
		}
		d := s.detail(r)
		if f.PhoneNumber != "" && (d.Customer == nil || !strings.Contains(d.Customer.PhoneNumber, f.PhoneNumber)) {
			continue
		}
		if f.From != nil && d.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && d.StartTime.After(*f.To) {
			continue
		}
		if f.MinPartySize > 0 && d.PartySize < f.MinPartySize {
			continue
		}
		if f.MenuName != "" {
			hit := false
			for _, l := range d.Lines {
				hit = hit || strings.Contains(l.Menu.Name, f.MenuName)
			}
			if !hit {
				continue
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memTx struct {
	s     *memStore
	rows  map[uint64]model.Reservation
	lines map[uint64][]model.ReservationLine // present key = line set replaced in this tx
	held  []*sync.Mutex
}

// row returns the reservation as this transaction sees it; callers hold t.s.mu.
func (t *memTx) row(id uint64) (model.Reservation, bool) {
	if r, ok := t.rows[id]; ok {
		return r, true
	}
	r, ok := t.s.reservations[id]
	return r, ok
}

// lineSet returns the lines as this transaction sees them; callers hold t.s.mu.
func (t *memTx) lineSet(id uint64) []model.ReservationLine {
	if ls, ok := t.lines[id]; ok {
		return ls
	}
	return t.s.lines[id]
}

func (t *memTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
}

func (t *memTx) fail(op string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.failOn == op {
		return fmt.Errorf("injected %s failure", op)
	}
	return nil
}

func (t *memTx) LockRestaurant(ctx context.Context, restaurantID uint64) error {
	if err := t.fail("LockRestaurant"); err != nil {
		return err
	}
	t.s.mu.Lock()
	t.s.lockCalls++
	_, ok := t.s.restaurants[restaurantID]
	t.s.mu.Unlock()
	if !ok {
		return repository.ErrRestaurantNotFound
	}
	m := t.s.rowLock(fmt.Sprintf("restaurant:%d", restaurantID))
	m.Lock()
	t.held = append(t.held, m)
	return nil
}

func (t *memTx) LockReservation(ctx context.Context, reservationID uint64) (uint64, error) {
	m := t.s.rowLock(fmt.Sprintf("reservation:%d", reservationID))
	m.Lock()
	t.held = append(t.held, m)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.reservations[reservationID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return r.CustomerID, nil
}

func (t *memTx) FindOverlapping(ctx context.Context, restaurantID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	if err := t.fail("FindOverlapping"); err != nil {
		return nil, err
	}
	return t.s.FindOverlapping(ctx, restaurantID, start, end, excludeID)
}

func (t *memTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	if err := t.fail("InsertReservation"); err != nil {
		return err
	}
	t.s.mu.Lock()
	t.s.nextID++
	res.ID = t.s.nextID
	res.CreatedAt = t.s.epoch.Add(time.Duration(res.ID) * time.Second)
	res.UpdatedAt = res.CreatedAt
	t.s.mu.Unlock()
	row := *res
	row.Lines = nil
	t.rows[row.ID] = row
	t.lines[row.ID] = nil
	return nil
}

func (t *memTx) InsertLines(ctx context.Context, lines []model.ReservationLine) error {
	if err := t.fail("InsertLines"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	seen := map[uint64]bool{}
	for _, l := range lines {
		if _, ok := t.s.menus[l.MenuID]; !ok {
			return errors.Join(repository.ErrForeignKey, fmt.Errorf("menu %d", l.MenuID))
		}
		if seen[l.MenuID] {
			return repository.ErrDuplicate
		}
		seen[l.MenuID] = true
	}
	for _, l := range lines {
		cur := t.lineSet(l.ReservationID)
		t.lines[l.ReservationID] = append(append([]model.ReservationLine(nil), cur...), l)
	}
	return nil
}

func (t *memTx) UpdatePartySize(ctx context.Context, reservationID uint64, partySize int) error {
	if err := t.fail("UpdatePartySize"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.row(reservationID)
	if !ok {
		return repository.ErrNotFound
	}
	r.PartySize = partySize
	t.rows[reservationID] = r
	return nil
}

func (t *memTx) DeleteLines(ctx context.Context, reservationID uint64) (int64, error) {
	if err := t.fail("DeleteLines"); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := int64(len(t.lineSet(reservationID)))
	t.lines[reservationID] = nil
	return n, nil
}

func (t *memTx) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	if err := t.fail("GetByID"); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.row(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := t.s.detailWith(r, t.lineSet(id))
	return &out, nil
}
