package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/scheduler"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

const testSecret = "handler-secret"

func token(t *testing.T, id uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, id, role, 5)
	require.NoError(t, err)
	return at.Token
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func request(e *echo.Echo, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

// fakeReservations records the last call and returns err when set.
type fakeReservations struct {
	err        error
	create     scheduler.CreateInput
	change     scheduler.Change
	actor      uint64
	id         uint64
	filter     scheduler.ListFilter
	restaurant uint64
}

func (f *fakeReservations) reservation(id uint64) *model.Reservation {
	return &model.Reservation{ID: id, RestaurantID: 1, CustomerID: f.actor, PartySize: 2, Lines: []model.ReservationLine{}}
}

func (f *fakeReservations) Create(_ context.Context, in scheduler.CreateInput) (*model.Reservation, error) {
	f.create, f.actor = in, in.CustomerID
	if f.err != nil {
		return nil, f.err
	}
	r := f.reservation(99)
	r.RestaurantID, r.StartTime, r.EndTime, r.PartySize = in.RestaurantID, in.StartTime, in.EndTime, in.PartySize
	return r, nil
}

func (f *fakeReservations) Update(_ context.Context, id, actor uint64, ch scheduler.Change) (*model.Reservation, error) {
	f.id, f.actor, f.change = id, actor, ch
	if f.err != nil {
		return nil, f.err
	}
	return f.reservation(id), nil
}

func (f *fakeReservations) Cancel(_ context.Context, id, actor uint64) error {
	f.id, f.actor = id, actor
	return f.err
}

func (f *fakeReservations) Get(_ context.Context, id, actor uint64) (*model.Reservation, error) {
	f.id, f.actor = id, actor
	if f.err != nil {
		return nil, f.err
	}
	return f.reservation(id), nil
}

func (f *fakeReservations) ListByCustomer(_ context.Context, customerID uint64) ([]model.Reservation, error) {
	f.actor = customerID
	if f.err != nil {
		return nil, f.err
	}
	return []model.Reservation{*f.reservation(2), *f.reservation(1)}, nil
}

func (f *fakeReservations) ListByRestaurant(_ context.Context, restaurantID uint64, lf scheduler.ListFilter) ([]model.Reservation, error) {
	f.restaurant, f.filter = restaurantID, lf
	if f.err != nil {
		return nil, f.err
	}
	return []model.Reservation{}, nil
}

type fakeMenus struct {
	created   *model.Menu
	query     repository.MenuSearchQuery
	listedFor uint64
	deleteErr error
}

func (f *fakeMenus) Create(_ context.Context, m *model.Menu) error {
	m.ID = 10
	f.created = m
	return nil
}

func (f *fakeMenus) ListByRestaurant(_ context.Context, restaurantID uint64, q repository.MenuSearchQuery) ([]model.Menu, error) {
	f.listedFor, f.query = restaurantID, q
	return []model.Menu{{ID: 10, RestaurantID: restaurantID, Name: "Bibimbap", Price: 12000, Category: "한식"}}, nil
}

func (f *fakeMenus) DeleteOwned(_ context.Context, menuID, restaurantID uint64) error {
	return f.deleteErr
}

type fakeCache struct {
	paths []string
	err   error
}

func (f *fakeCache) Invalidate(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

// fakeAccounts backs both account interfaces with in-memory maps.
type fakeAccounts struct {
	mu          sync.Mutex
	customers   map[uint64]model.Customer
	restaurants map[uint64]model.Restaurant
	nextID      uint64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{customers: map[uint64]model.Customer{}, restaurants: map[uint64]model.Restaurant{}}
}

type fakeCustomers struct{ *fakeAccounts }
type fakeRestaurants struct{ *fakeAccounts }

func (f fakeCustomers) Create(_ context.Context, c *model.Customer, password string, cost int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.customers {
		if x.LoginID == c.LoginID || x.PhoneNumber == c.PhoneNumber {
			return repository.ErrDuplicate
		}
	}
	h, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	f.nextID++
	c.ID, c.PasswordHash = f.nextID, h
	f.customers[c.ID] = *c
	return nil
}

func (f fakeCustomers) GetByLoginID(_ context.Context, loginID string) (model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.customers {
		if x.LoginID == loginID {
			return x, nil
		}
	}
	return model.Customer{}, repository.ErrNotFound
}

func (f fakeCustomers) GetByID(_ context.Context, id uint64) (model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if x, ok := f.customers[id]; ok {
		return x, nil
	}
	return model.Customer{}, repository.ErrNotFound
}

func (f fakeRestaurants) Create(_ context.Context, r *model.Restaurant, password string, cost int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.restaurants {
		if x.LoginID == r.LoginID {
			return repository.ErrDuplicate
		}
	}
	h, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	f.nextID++
	r.ID, r.PasswordHash = f.nextID, h
	f.restaurants[r.ID] = *r
	return nil
}

func (f fakeRestaurants) GetByLoginID(_ context.Context, loginID string) (model.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.restaurants {
		if x.LoginID == loginID {
			return x, nil
		}
	}
	return model.Restaurant{}, repository.ErrNotFound
}

func (f fakeRestaurants) GetByID(_ context.Context, id uint64) (model.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if x, ok := f.restaurants[id]; ok {
		return x, nil
	}
	return model.Restaurant{}, repository.ErrNotFound
}

type storedToken struct {
	subject uint64
	role    string
	exp     time.Time
}

type fakeTokens struct {
	mu     sync.Mutex
	byHash map[string]storedToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{byHash: map[string]storedToken{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, subjectID uint64, role, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[hash] = storedToken{subjectID, role, exp}
	return nil
}

func (f *fakeTokens) ConsumeRefresh(_ context.Context, hash string, now time.Time) (uint64, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.byHash[hash]
	if !ok || !st.exp.After(now) {
		return 0, "", repository.ErrNotFound
	}
	delete(f.byHash, hash)
	return st.subject, st.role, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byHash, hash)
	return nil
}

func (f *fakeTokens) RevokeAllForSubject(_ context.Context, subjectID uint64, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, st := range f.byHash {
		if st.subject == subjectID && st.role == role {
			delete(f.byHash, h)
		}
	}
	return nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byHash)
}
