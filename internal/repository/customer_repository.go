package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

type CustomerRepo struct{ DB *sql.DB }

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{DB: db} }

// Create hashes password, inserts the customer and fills in c.ID and the
// timestamps.  ErrDuplicate is returned when the login ID or phone number is
// already registered.
func (r *CustomerRepo) Create(ctx context.Context, c *model.Customer, password string, cost int) error {
	c.LoginID = strings.TrimSpace(c.LoginID)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO customers (login_id, password_hash, name, phone_number) VALUES (?,?,?,?)",
		c.LoginID, hash, c.Name, c.PhoneNumber)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.PasswordHash = hash
	return r.DB.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM customers WHERE id=?", c.ID).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// GetByLoginID fetches a customer by login ID.
func (r *CustomerRepo) GetByLoginID(ctx context.Context, loginID string) (model.Customer, error) {
	return r.getOne(ctx, "login_id", strings.TrimSpace(loginID))
}

// GetByID fetches a customer by id.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (model.Customer, error) {
	return r.getOne(ctx, "id", id)
}

func (r *CustomerRepo) getOne(ctx context.Context, col string, v any) (model.Customer, error) {
	var c model.Customer
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,login_id,password_hash,name,phone_number,created_at,updated_at FROM customers WHERE "+col+"=? LIMIT 1",
		v).Scan(&c.ID, &c.LoginID, &c.PasswordHash, &c.Name, &c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}
