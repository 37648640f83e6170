package errors

import (
	stderrs "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// sqlStates maps the SQLSTATEs the loader tables can raise
// anything else from the server is ErrorCodeDB
var sqlStates = map[string]ErrorCode{
	"23505": ErrorCodeDuplicateKey,    // unique_violation
	"23503": ErrorCodeInvalidArgument, // foreign_key_violation
	"23502": ErrorCodeValidation,      // not_null_violation
	"23514": ErrorCodeValidation,      // check_violation
	"22001": ErrorCodeInvalidArgument, // string_data_right_truncation
	"22P02": ErrorCodeInvalidArgument, // invalid_text_representation
	"25006": ErrorCodeUnavailable,     // read_only_sql_transaction
	"57P03": ErrorCodeUnavailable,     // cannot_connect_now
}

// DBErrorCode classifies a postgres driver error
// ok is false when err did not come from the driver
func DBErrorCode(err error) (code ErrorCode, ok bool) {
	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	switch {
	case stderrs.Is(err, pgx.ErrNoRows):
		return ErrorCodeNotFound, true
	case stderrs.As(err, &pgErr):
		if c, known := sqlStates[pgErr.Code]; known {
			return c, true
		}
		return ErrorCodeDB, true
	case stderrs.As(err, &connErr):
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeUnknown, false
}

// FromPostgres wraps a driver error with msg and its mapped code
// nil stays nil and errors that already carry a code keep it
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// FromPostgresf is FromPostgres with a formatted message
func FromPostgresf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return FromPostgres(err, fmt.Sprintf(format, a...))
}
