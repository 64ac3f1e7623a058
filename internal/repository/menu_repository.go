package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// MenuRepo manages a restaurant's catalog.
type MenuRepo struct {
	db *sql.DB
}

// NewMenuRepo returns a new MenuRepo bound to the given database.
func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// MenuSearchQuery defines filters for listing a restaurant's menus.
type MenuSearchQuery struct {
	Name     string
	MinPrice *uint32
	MaxPrice *uint32
}

// Create inserts m and fills in its ID and timestamps.  ErrForeignKey is
// returned when the restaurant does not exist.
func (r *MenuRepo) Create(ctx context.Context, m *model.Menu) error {
	const q = `INSERT INTO menus (restaurant_id, name, price, category, description) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.RestaurantID, m.Name, m.Price, m.Category, m.Description)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at, updated_at FROM menus WHERE id = ?`, m.ID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

// ListByRestaurant returns the restaurant's menus matching q ordered by id.
func (r *MenuRepo) ListByRestaurant(ctx context.Context, restaurantID uint64, q MenuSearchQuery) ([]model.Menu, error) {
	where := []string{"restaurant_id = ?"}
	args := []any{restaurantID}
	if q.Name != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+escapeLike(q.Name)+"%")
	}
	if q.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *q.MaxPrice)
	}
	query := `SELECT id, restaurant_id, name, price, category, description, created_at, updated_at
		FROM menus WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Menu{}
	for rows.Next() {
		var m model.Menu
		var desc sql.NullString
		if err := rows.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.Category, &desc, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			d := desc.String
			m.Description = &d
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteOwned removes a menu belonging to restaurantID.  ErrNotFound is
// returned when the menu does not exist and ErrForbidden when another
// restaurant owns it.  Reservation lines referencing the menu are removed by
// ON DELETE CASCADE.
func (r *MenuRepo) DeleteOwned(ctx context.Context, menuID, restaurantID uint64) error {
	var owner uint64
	err := r.db.QueryRowContext(ctx, `SELECT restaurant_id FROM menus WHERE id = ?`, menuID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != restaurantID {
		return ErrForbidden
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM menus WHERE id = ? AND restaurant_id = ?`, menuID, restaurantID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
