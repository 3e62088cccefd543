package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes raised when a relation or column does not exist.
const (
	codeUndefinedTable  = "42P01"
	codeUndefinedColumn = "42703"
)

// IsSchemaUnavailable reports whether err was caused by a missing table or column.
func IsSchemaUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeUndefinedTable || pgErr.Code == codeUndefinedColumn
}
