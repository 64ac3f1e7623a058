package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so that the same query
// helpers serve autocommit reads and transactional reads.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is the set of writes and locking reads a reservation transaction may
// perform.  Implementations run every call inside one database
// transaction; nothing is visible to other sessions until commit.
type Tx interface {
	// LockRestaurant takes an exclusive row lock on the restaurant, which
	// serialises all reservation writes for it until the transaction ends.
	// ErrRestaurantNotFound is returned when the row does not exist.
	LockRestaurant(ctx context.Context, restaurantID uint64) error
	// LockReservation takes an exclusive row lock on the reservation and
	// returns its owner.  ErrNotFound is returned when the row is gone.
	LockReservation(ctx context.Context, reservationID uint64) (customerID uint64, err error)
	FindOverlapping(ctx context.Context, restaurantID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error)
	InsertReservation(ctx context.Context, res *model.Reservation) error
	InsertLines(ctx context.Context, lines []model.ReservationLine) error
	UpdatePartySize(ctx context.Context, reservationID uint64, partySize int) error
	DeleteLines(ctx context.Context, reservationID uint64) (int64, error)
	// GetByID reads the reservation and its lines as this transaction sees
	// them, including its own uncommitted writes.
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
}

// ReservationRepo stores reservations and their menu lines.  All timestamps
// are written and read in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// WithinTx runs fn inside a database transaction.  The transaction is
// committed when fn returns nil and rolled back otherwise.
func (r *ReservationRepo) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// readTx runs fn in a read-only transaction so that all of its statements
// read one InnoDB snapshot: a reservation and its lines always come from the
// same committed state.
func (r *ReservationRepo) readTx(ctx context.Context, fn func(q queryer) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }() // no-op after Commit
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type reservationTx struct {
	tx *sql.Tx
}

func (t *reservationTx) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getReservation(ctx, t.tx, id)
}

func (t *reservationTx) LockRestaurant(ctx context.Context, restaurantID uint64) error {
	var id uint64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM restaurants WHERE id = ? FOR UPDATE`, restaurantID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRestaurantNotFound
	}
	return err
}

func (t *reservationTx) LockReservation(ctx context.Context, reservationID uint64) (uint64, error) {
	var customerID uint64
	err := t.tx.QueryRowContext(ctx, `SELECT customer_id FROM reservations WHERE id = ? FOR UPDATE`, reservationID).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return customerID, err
}

// FindOverlapping inside a transaction is a locking read so that it observes
// the latest committed rows rather than the transaction's snapshot.
func (t *reservationTx) FindOverlapping(ctx context.Context, restaurantID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	return findOverlapping(ctx, t.tx, restaurantID, start, end, excludeID, " FOR SHARE")
}

func (t *reservationTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (restaurant_id, customer_id, start_time, end_time, party_size) VALUES (?, ?, ?, ?, ?)`
	result, err := t.tx.ExecContext(ctx, q, res.RestaurantID, res.CustomerID, res.StartTime.UTC(), res.EndTime.UTC(), res.PartySize)
	if err != nil {
		return translate(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Read back defaults
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	return t.tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// InsertLines writes all lines in one statement.  An empty slice is a no-op.
func (t *reservationTx) InsertLines(ctx context.Context, lines []model.ReservationLine) error {
	if len(lines) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO reservation_menus (reservation_id, menu_id, quantity) VALUES `)
	args := make([]any, 0, len(lines)*3)
	for i, l := range lines {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?)")
		args = append(args, l.ReservationID, l.MenuID, l.Quantity)
	}
	_, err := t.tx.ExecContext(ctx, b.String(), args...)
	return translate(err)
}

func (t *reservationTx) UpdatePartySize(ctx context.Context, reservationID uint64, partySize int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE reservations SET party_size = ? WHERE id = ?`, partySize, reservationID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *reservationTx) DeleteLines(ctx context.Context, reservationID uint64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM reservation_menus WHERE reservation_id = ?`, reservationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindOverlapping returns reservations at restaurantID whose interval
// intersects [start, end).  Touching intervals do not overlap.  excludeID,
// when non-zero, omits that reservation from the result.
func (r *ReservationRepo) FindOverlapping(ctx context.Context, restaurantID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	return findOverlapping(ctx, r.db, restaurantID, start, end, excludeID, "")
}

func findOverlapping(ctx context.Context, q queryer, restaurantID uint64, start, end time.Time, excludeID uint64, lock string) ([]model.Reservation, error) {
	query := `SELECT id, restaurant_id, customer_id, start_time, end_time, party_size, created_at, updated_at
		FROM reservations
		WHERE restaurant_id = ? AND start_time < ? AND end_time > ?`
	args := []any{restaurantID, end.UTC(), start.UTC()}
	if excludeID != 0 {
		query += ` AND id <> ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY start_time ASC` + lock
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.RestaurantID, &res.CustomerID, &res.StartTime, &res.EndTime,
			&res.PartySize, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// GetByID loads a reservation with its lines.  ErrNotFound is returned when
// no row matches.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (res *model.Reservation, err error) {
	err = r.readTx(ctx, func(q queryer) error {
		res, err = getReservation(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func getReservation(ctx context.Context, q queryer, id uint64) (*model.Reservation, error) {
	const sel = `SELECT r.id, r.restaurant_id, r.customer_id, r.start_time, r.end_time, r.party_size,
			r.created_at, r.updated_at, s.name
		FROM reservations r
		JOIN restaurants s ON s.id = r.restaurant_id
		WHERE r.id = ?`
	var res model.Reservation
	var restaurantName string
	err := q.QueryRowContext(ctx, sel, id).Scan(&res.ID, &res.RestaurantID, &res.CustomerID,
		&res.StartTime, &res.EndTime, &res.PartySize, &res.CreatedAt, &res.UpdatedAt, &restaurantName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Restaurant = &model.RestaurantRef{ID: res.RestaurantID, Name: restaurantName}
	list := []model.Reservation{res}
	if err := attachLines(ctx, q, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Delete removes a reservation.  Its lines go with it through ON DELETE
// CASCADE.  ErrNotFound is returned when nothing was deleted.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListByCustomer returns the customer's reservations, newest first, with
// restaurant names and lines.
func (r *ReservationRepo) ListByCustomer(ctx context.Context, customerID uint64) (out []model.Reservation, err error) {
	err = r.readTx(ctx, func(q queryer) error {
		out, err = listByCustomer(ctx, q, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func listByCustomer(ctx context.Context, q queryer, customerID uint64) ([]model.Reservation, error) {
	const sel = `SELECT r.id, r.restaurant_id, r.customer_id, r.start_time, r.end_time, r.party_size,
			r.created_at, r.updated_at, s.name
		FROM reservations r
		JOIN restaurants s ON s.id = r.restaurant_id
		WHERE r.customer_id = ?
		ORDER BY r.created_at DESC, r.id DESC`
	rows, err := q.QueryContext(ctx, sel, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		var res model.Reservation
		var name string
		if err := rows.Scan(&res.ID, &res.RestaurantID, &res.CustomerID, &res.StartTime, &res.EndTime,
			&res.PartySize, &res.CreatedAt, &res.UpdatedAt, &name); err != nil {
			return nil, err
		}
		res.Restaurant = &model.RestaurantRef{ID: res.RestaurantID, Name: name}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachLines(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachLines loads the lines of every reservation in rs with one query and
// stores them on the matching element.  Reservations without lines get an
// empty, non-nil slice.
func attachLines(ctx context.Context, q queryer, rs []model.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(rs))
	args := make([]any, 0, len(rs))
	marks := make([]string, 0, len(rs))
	for i := range rs {
		rs[i].Lines = []model.ReservationLine{}
		index[rs[i].ID] = i
		args = append(args, rs[i].ID)
		marks = append(marks, "?")
	}
	query := `SELECT rm.reservation_id, rm.menu_id, rm.quantity, m.name, m.price, m.category
		FROM reservation_menus rm
		JOIN menus m ON m.id = rm.menu_id
		WHERE rm.reservation_id IN (` + strings.Join(marks, ",") + `)
		ORDER BY rm.reservation_id, rm.menu_id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l model.ReservationLine
		var m model.MenuRef
		if err := rows.Scan(&l.ReservationID, &l.MenuID, &l.Quantity, &m.Name, &m.Price, &m.Category); err != nil {
			return err
		}
		m.ID = l.MenuID
		l.Menu = &m
		if i, ok := index[l.ReservationID]; ok {
			rs[i].Lines = append(rs[i].Lines, l)
		}
	}
	return rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
