package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

type RestaurantRepo struct{ DB *sql.DB }

func NewRestaurantRepo(db *sql.DB) *RestaurantRepo { return &RestaurantRepo{DB: db} }

// Create hashes password and inserts the restaurant.  ErrDuplicate is
// returned when the login ID is taken.
func (r *RestaurantRepo) Create(ctx context.Context, rest *model.Restaurant, password string, cost int) error {
	rest.LoginID = strings.TrimSpace(rest.LoginID)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO restaurants (login_id, password_hash, name) VALUES (?,?,?)",
		rest.LoginID, hash, rest.Name)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rest.ID = uint64(id)
	rest.PasswordHash = hash
	return r.DB.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM restaurants WHERE id=?", rest.ID).Scan(&rest.CreatedAt, &rest.UpdatedAt)
}

// GetByLoginID fetches a restaurant by login ID.
func (r *RestaurantRepo) GetByLoginID(ctx context.Context, loginID string) (model.Restaurant, error) {
	return r.getOne(ctx, "login_id", strings.TrimSpace(loginID))
}

// GetByID fetches a restaurant by id.
func (r *RestaurantRepo) GetByID(ctx context.Context, id uint64) (model.Restaurant, error) {
	return r.getOne(ctx, "id", id)
}

func (r *RestaurantRepo) getOne(ctx context.Context, col string, v any) (model.Restaurant, error) {
	var rest model.Restaurant
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,login_id,password_hash,name,created_at,updated_at FROM restaurants WHERE "+col+"=? LIMIT 1",
		v).Scan(&rest.ID, &rest.LoginID, &rest.PasswordHash, &rest.Name, &rest.CreatedAt, &rest.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rest, ErrNotFound
	}
	return rest, err
}
