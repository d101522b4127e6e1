package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/dayreport/internal/config"
	"github.com/phrazzld/dayreport/internal/domain"
)

// dayLayout formats the counter date.
const dayLayout = "2006-01-02"

// ErrReservationSettled is returned when a Reservation is committed twice
// or after it was released.
var ErrReservationSettled = errors.New("reservation already settled")

// Size describes an artifact that passed the byte cap.
type Size struct {
	Bytes int64 `json:"bytes"`
	Limit int64 `json:"limit"`
}

// Status is a point-in-time view of the ledger.
type Status struct {
	Date      string `json:"date"`
	Count     int    `json:"count"`
	Reserved  int    `json:"reserved"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	MaxBytes  int64  `json:"maxArtifactBytes"`
}

// Ledger owns the daily artifact counter.
type Ledger struct {
	mu       sync.Mutex
	store    Store
	limit    int
	maxBytes int64
	reserved int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to decide the current day.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a Ledger backed by store.
func NewLedger(store Store, cfg config.QuotaConfig, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		store:    store,
		limit:    cfg.DailyLimit,
		maxBytes: cfg.MaxArtifactBytes,
		now:      time.Now,
		logger:   logger.With("component", "quota_ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAdmit reports whether one more artifact fits today's budget. It leaves
// the count unchanged; a stale counter is reset and persisted first.
func (l *Ledger) TryAdmit(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.current(ctx)
	if err != nil {
		return false, err
	}
	return c.Count+l.reserved < l.limit, nil
}

// Commit records one written artifact and returns the new count.
func (l *Ledger) Commit(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.commitLocked(ctx)
}

// Reserve admits one artifact and holds its slot until the reservation is
// committed or released. It returns domain.ErrQuotaExceeded when the budget,
// including outstanding reservations, is spent.
func (l *Ledger) Reserve(ctx context.Context) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.current(ctx)
	if err != nil {
		return nil, err
	}
	if c.Count+l.reserved >= l.limit {
		return nil, fmt.Errorf("%w: %d of %d artifacts used on %s", domain.ErrQuotaExceeded, c.Count, l.limit, c.Date)
	}
	l.reserved++
	return &Reservation{ledger: l}, nil
}

// SizeCheck fails with domain.ErrArtifactTooLarge when n exceeds the byte cap.
func (l *Ledger) SizeCheck(n int64) (Size, error) {
	size := Size{Bytes: n, Limit: l.maxBytes}
	if n > l.maxBytes {
		return size, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrArtifactTooLarge, n, l.maxBytes)
	}
	return size, nil
}

// Status returns today's usage.
func (l *Ledger) Status(ctx context.Context) (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.current(ctx)
	if err != nil {
		return Status{}, err
	}
	remaining := l.limit - c.Count - l.reserved
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Date:      c.Date,
		Count:     c.Count,
		Reserved:  l.reserved,
		Limit:     l.limit,
		Remaining: remaining,
		MaxBytes:  l.maxBytes,
	}, nil
}

// current loads the counter and applies the day rollover. Callers hold mu.
func (l *Ledger) current(ctx context.Context) (Counter, error) {
	c, err := l.store.Load(ctx)
	if err != nil {
		return Counter{}, err
	}

	today := l.now().Format(dayLayout)
	if c.Date == today {
		return c, nil
	}

	fresh := Counter{Date: today}
	if err := l.store.Save(ctx, fresh); err != nil {
		return Counter{}, err
	}
	if c.Date != "" {
		l.logger.Debug("quota counter rolled over", "previous_date", c.Date, "previous_count", c.Count, "date", today)
	}
	return fresh, nil
}

func (l *Ledger) commitLocked(ctx context.Context) (int, error) {
	c, err := l.current(ctx)
	if err != nil {
		return 0, err
	}
	c.Count++
	if err := l.store.Save(ctx, c); err != nil {
		return 0, err
	}
	l.logger.Debug("artifact counted", "date", c.Date, "count", c.Count, "limit", l.limit)
	return c.Count, nil
}

// Reservation is an admitted artifact slot. Exactly one of Commit or
// Release settles it; Release after Commit is a no-op.
type Reservation struct {
	ledger  *Ledger
	settled bool
}

// Commit counts the reserved artifact as written and returns the new count.
// The slot is freed even when persisting the count fails.
func (r *Reservation) Commit(ctx context.Context) (int, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.settled {
		return 0, ErrReservationSettled
	}
	r.settled = true
	l.reserved--
	return l.commitLocked(ctx)
}

// Release gives the slot back without counting an artifact.
func (r *Reservation) Release() {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.settled {
		return
	}
	r.settled = true
	l.reserved--
}
