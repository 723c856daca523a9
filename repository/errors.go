package repository

import (
	"errors"

	"FragFM/core/errs"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// catalogErr classifies a failed statement; unique-constraint violations
// become Conflict so callers can answer 409.
func catalogErr(op, conflictMsg string, err error) error {
	if isDuplicateKey(err) {
		return errs.E(errs.Conflict, op, conflictMsg, err)
	}
	return errs.E(errs.Catalog, op, "", err)
}
