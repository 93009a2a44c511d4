package repository

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicate reports a UNIQUE/PRIMARY KEY violation.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrForeignKey reports a reference to a row that does not exist.
	ErrForeignKey = errors.New("repository: foreign key violation")
	// ErrStaleStatus reports a lost compare-and-set on an order status.
	ErrStaleStatus = errors.New("repository: order status changed concurrently")
)

// constraintError maps SQLite constraint failures to repository errors and
// returns nil for anything else.
func constraintError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return nil
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return ErrDuplicate
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ErrForeignKey
	}
	// Primary result code only (extended codes disabled).
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return ErrDuplicate
		case strings.Contains(msg, "FOREIGN KEY"):
			return ErrForeignKey
		}
	}
	return nil
}
