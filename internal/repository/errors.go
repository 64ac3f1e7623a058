// Package repository implements MySQL persistence for accounts, menus and
// reservations.  The sentinel values below let higher layers distinguish
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrRestaurantNotFound is returned when a reservation targets a restaurant
// that does not exist.
var ErrRestaurantNotFound = errors.New("restaurant not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicate wraps unique key violations (MySQL 1062).
var ErrDuplicate = errors.New("duplicate entry")

// ErrForeignKey wraps foreign key violations on insert (MySQL 1452).
var ErrForeignKey = errors.New("referenced row does not exist")

const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	mysqlNoReferencedRow2 = 1216
)

// translate maps driver errors to the sentinels above and returns everything
// else unchanged.
func translate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry:
		return errors.Join(ErrDuplicate, err)
	case mysqlNoReferencedRow, mysqlNoReferencedRow2:
		return errors.Join(ErrForeignKey, err)
	}
	return err
}
