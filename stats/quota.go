package stats

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/borissharikoff-droid/youtube/telemetry"
)

// QuotaTracker counts outbound upstream calls within a rolling window and
// refuses acquisition once the budget is spent. The in-memory window is the
// source of truth for the atomic acquire-and-check; the api_quota table is a
// best-effort mirror so a restart does not forget spent quota.
type QuotaTracker struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	limit       int
	windowLen   time.Duration

	db  *sql.DB
	now func() time.Time
}

// NewQuotaTracker builds a tracker with the given budget and window length,
// restoring the persisted current window if one exists. A nil db disables
// persistence.
func NewQuotaTracker(ctx context.Context, db *sql.DB, limit int, window time.Duration) *QuotaTracker {
	q := &QuotaTracker{
		limit:     limit,
		windowLen: window,
		db:        db,
		now:       time.Now,
	}
	q.windowStart = q.now().UTC().Truncate(window)
	if db != nil {
		var start time.Time
		var count int
		err := db.QueryRowContext(ctx,
			`SELECT window_start, call_count FROM api_quota ORDER BY window_start DESC LIMIT 1`).
			Scan(&start, &count)
		if err == nil && q.now().UTC().Sub(start.UTC()) < window {
			q.windowStart = start.UTC()
			q.count = count
		} else if err != nil && err != sql.ErrNoRows {
			slog.Warn("quota window restore failed", slog.Any("err", err), slog.String("component", "quota"))
		}
	}
	telemetry.SetQuotaRemaining(q.limit - q.count)
	return q
}

// rollover resets the window if it has elapsed. Callers hold q.mu.
func (q *QuotaTracker) rollover() {
	now := q.now().UTC()
	if now.Sub(q.windowStart) < q.windowLen {
		return
	}
	q.windowStart = now.Truncate(q.windowLen)
	q.count = 0
}

// TryAcquire reserves n upstream calls from the current window's budget.
// It returns false when the budget is insufficient; the caller must then serve
// stale data rather than call upstream. call_count never exceeds the limit,
// even under concurrent callers.
func (q *QuotaTracker) TryAcquire(ctx context.Context, n int) bool {
	if n <= 0 {
		n = 1
	}
	q.mu.Lock()
	q.rollover()
	if q.count+n > q.limit {
		q.mu.Unlock()
		telemetry.QuotaRefusals.Inc()
		return false
	}
	q.count += n
	start, count := q.windowStart, q.count
	q.mu.Unlock()

	telemetry.SetQuotaRemaining(q.limit - count)
	q.persist(ctx, start, count)
	return true
}

// Remaining reports the budget left in the current window.
func (q *QuotaTracker) Remaining(ctx context.Context) int {
	q.mu.Lock()
	q.rollover()
	left := q.limit - q.count
	q.mu.Unlock()
	return left
}

// Limit returns the configured per-window budget.
func (q *QuotaTracker) Limit() int { return q.limit }

// Window returns the current window start and the calls spent in it.
func (q *QuotaTracker) Window() (time.Time, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return q.windowStart, q.count
}

// persist mirrors the window to the database. Failures are logged and ignored;
// the in-memory count keeps the invariant. Counts only grow within a window,
// so GREATEST keeps the mirror exact even when concurrent acquires land their
// writes out of order.
func (q *QuotaTracker) persist(ctx context.Context, start time.Time, count int) {
	if q.db == nil {
		return
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO api_quota (window_start, call_count, call_limit)
		VALUES ($1,$2,$3)
		ON CONFLICT(window_start) DO UPDATE SET call_count=GREATEST(api_quota.call_count, EXCLUDED.call_count)`, start, count, q.limit)
	if err != nil {
		slog.Warn("quota persist failed", slog.Any("err", err), slog.String("component", "quota"))
	}
}
