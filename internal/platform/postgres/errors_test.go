package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedError error
		expectedMsg   string
	}{
		{
			name: "nil_error",
			err:  nil,
		},
		{
			name:          "sql_no_rows",
			err:           sql.ErrNoRows,
			expectedError: domain.ErrPersistence,
			expectedMsg:   "row not found",
		},
		{
			name: "check_violation",
			err: &pgconn.PgError{
				Code:           checkViolationCode,
				ConstraintName: "quota_counter_count_check",
			},
			expectedError: domain.ErrPersistence,
			expectedMsg:   "quota_counter_count_check",
		},
		{
			name: "not_null_violation",
			err: &pgconn.PgError{
				Code:       notNullViolationCode,
				ColumnName: "day",
			},
			expectedError: domain.ErrPersistence,
			expectedMsg:   "not null violation (day)",
		},
		{
			name:          "undefined_table",
			err:           &pgconn.PgError{Code: undefinedTableCode},
			expectedError: domain.ErrPersistence,
			expectedMsg:   "run migrations",
		},
		{
			name:          "other_error",
			err:           errors.New("connection reset"),
			expectedError: domain.ErrPersistence,
			expectedMsg:   "connection reset",
		},
		{
			name:          "context_canceled_passes_through",
			err:           fmt.Errorf("query: %w", context.Canceled),
			expectedError: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.expectedError)
			if tt.expectedMsg != "" {
				assert.Contains(t, got.Error(), tt.expectedMsg)
			}
		})
	}
}

func TestIsCheckConstraintViolation(t *testing.T) {
	assert.True(t, IsCheckConstraintViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.True(t, IsCheckConstraintViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: checkViolationCode})))
	assert.False(t, IsCheckConstraintViolation(&pgconn.PgError{Code: notNullViolationCode}))
	assert.False(t, IsCheckConstraintViolation(errors.New("plain")))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	assert.NoError(t, err)
	assert.NotEmpty(t, entries)
}
