package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

func TestCustomerCreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO customers`).
		WithArgs("alice", sqlmock.AnyArg(), "Alice", "010-1111-2222").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice'"})

	c := &model.Customer{LoginID: " alice ", Name: "Alice", PhoneNumber: "010-1111-2222"}
	err = NewCustomerRepo(db).Create(context.Background(), c, "pw", 4)
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerCreateAndLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCustomerRepo(db)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO customers`).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery(`SELECT created_at, updated_at FROM customers WHERE id=\?`).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	c := &model.Customer{LoginID: "bob", Name: "Bob", PhoneNumber: "010"}
	require.NoError(t, repo.Create(context.Background(), c, "secret", 4))
	assert.Equal(t, uint64(5), c.ID)
	assert.True(t, utils.VerifyPassword(c.PasswordHash, "secret"))

	mock.ExpectQuery(`FROM customers WHERE login_id=\? LIMIT 1`).WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login_id", "password_hash", "name", "phone_number", "created_at", "updated_at"}).
			AddRow(5, "bob", c.PasswordHash, "Bob", "010", now, now))
	got, err := repo.GetByLoginID(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)

	mock.ExpectQuery(`FROM customers WHERE id=\? LIMIT 1`).WithArgs(uint64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.GetByID(context.Background(), 6)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRestaurantLookupNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM restaurants WHERE login_id=\? LIMIT 1`).WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = NewRestaurantRepo(db).GetByLoginID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMenuDeleteOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewMenuRepo(db)

	mock.ExpectQuery(`SELECT restaurant_id FROM menus WHERE id = \?`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"restaurant_id"}))
	assert.ErrorIs(t, repo.DeleteOwned(context.Background(), 1, 3), ErrNotFound)

	mock.ExpectQuery(`SELECT restaurant_id FROM menus WHERE id = \?`).WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"restaurant_id"}).AddRow(4))
	assert.ErrorIs(t, repo.DeleteOwned(context.Background(), 2, 3), ErrForbidden)

	mock.ExpectQuery(`SELECT restaurant_id FROM menus WHERE id = \?`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"restaurant_id"}).AddRow(3))
	mock.ExpectExec(`DELETE FROM menus WHERE id = \? AND restaurant_id = \?`).WithArgs(uint64(3), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.DeleteOwned(context.Background(), 3, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMenuListFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	min, max := uint32(1000), uint32(20000)

	mock.ExpectQuery(`FROM menus WHERE restaurant_id = \? AND name LIKE \? AND price >= \? AND price <= \? ORDER BY id ASC`).
		WithArgs(uint64(3), "%Pasta%", min, max).
		WillReturnRows(sqlmock.NewRows([]string{"id", "restaurant_id", "name", "price", "category", "description", "created_at", "updated_at"}).
			AddRow(1, 3, "Pasta", 15000, "양식", nil, now, now).
			AddRow(2, 3, "Pasta Rosa", 16000, "양식", "creamy", now, now))

	got, err := NewMenuRepo(db).ListByRestaurant(context.Background(), 3, MenuSearchQuery{Name: "Pasta", MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Description)
	require.NotNil(t, got[1].Description)
	assert.Equal(t, "creamy", *got[1].Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenConsumeRefresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTokenRepo(db)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	const revoke = `UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\(3\) WHERE token_hash=\? AND revoked_at IS NULL AND expires_at > \?`

	mock.ExpectExec(revoke).WithArgs("ok", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT subject_id, role FROM refresh_tokens WHERE token_hash=\?`).WithArgs("ok").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id", "role"}).AddRow(7, "RESTAURANT"))
	id, role, err := repo.ConsumeRefresh(context.Background(), "ok", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, "RESTAURANT", role)

	// spent, expired or unknown: the UPDATE matches nothing
	mock.ExpectExec(revoke).WithArgs("ok", now).WillReturnResult(sqlmock.NewResult(0, 0))
	_, _, err = repo.ConsumeRefresh(context.Background(), "ok", now)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(revoke).WithArgs("x", now).WillReturnError(errors.New("lock wait timeout"))
	_, _, err = repo.ConsumeRefresh(context.Background(), "x", now)
	assert.EqualError(t, err, "lock wait timeout")
	require.NoError(t, mock.ExpectationsWereMet())
}
