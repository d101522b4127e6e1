package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/dayreport/internal/domain"
)

// PostgreSQL error codes
const (
	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"

	// undefinedTableCode is raised when the migrations have not been applied
	undefinedTableCode = "42P01"
)

// MapError maps a database error onto domain.ErrPersistence, keeping the
// original error text for logs. Context cancellation passes through so
// callers can tell shutdown apart from storage failure.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: row not found: %w", domain.ErrPersistence, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case checkViolationCode:
			return fmt.Errorf("%w: check constraint violation (%s): %w",
				domain.ErrPersistence, pgErr.ConstraintName, err)
		case notNullViolationCode:
			return fmt.Errorf("%w: not null violation (%s): %w",
				domain.ErrPersistence, pgErr.ColumnName, err)
		case undefinedTableCode:
			return fmt.Errorf("%w: schema missing, run migrations: %w", domain.ErrPersistence, err)
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

// IsCheckConstraintViolation checks if the given error is a PostgreSQL check constraint violation.
func IsCheckConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolationCode
}
