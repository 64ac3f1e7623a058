package repository

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	dup := translate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	assert.ErrorIs(t, dup, ErrDuplicate)

	fk := translate(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	assert.ErrorIs(t, fk, ErrForeignKey)

	other := &mysql.MySQLError{Number: 1213, Message: "Deadlock"}
	assert.Same(t, other, translate(other))

	plain := errors.New("boom")
	assert.Same(t, plain, translate(plain))
}
