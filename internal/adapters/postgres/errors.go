package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const UndefinedTableCode = "42P01"

func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
