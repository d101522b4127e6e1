package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/dayreport/internal/quota"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// QuotaStore keeps the quota counter in the single-row quota_counter table.
type QuotaStore struct {
	db     DBTX
	logger *slog.Logger
}

var _ quota.Store = (*QuotaStore)(nil)

// NewQuotaStore creates a QuotaStore. The table must already exist; see Migrate.
func NewQuotaStore(db DBTX, logger *slog.Logger) *QuotaStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaStore{db: db, logger: logger.With("component", "quota_store")}
}

// Load returns the stored counter, or the zero Counter before the first save.
func (s *QuotaStore) Load(ctx context.Context) (quota.Counter, error) {
	var c quota.Counter
	err := s.db.QueryRowContext(ctx,
		`SELECT day, count FROM quota_counter WHERE id = 1`,
	).Scan(&c.Date, &c.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.Counter{}, nil
	}
	if err != nil {
		s.logger.Error("failed to load quota counter", "error", err)
		return quota.Counter{}, MapError(err)
	}
	return c, nil
}

// Save upserts the counter row.
func (s *QuotaStore) Save(ctx context.Context, c quota.Counter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_counter (id, day, count, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET day = EXCLUDED.day, count = EXCLUDED.count, updated_at = EXCLUDED.updated_at
	`, c.Date, c.Count)
	if err != nil {
		s.logger.Error("failed to save quota counter", "date", c.Date, "count", c.Count, "error", err)
		return MapError(err)
	}
	return nil
}
