// Package stats implements the historical statistics core: the snapshot store,
// the tiered cache, the upstream quota tracker, the daily/trend aggregator and
// the facade the chat layer talks to.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Metrics is one observation of an entity's cumulative counters as reported by
// the upstream source.
type Metrics struct {
	Views    int64
	Likes    int64
	Comments int64
}

// Snapshot is a timestamped Metrics observation for a channel. Rows are
// append-only; they are removed only by retention pruning.
type Snapshot struct {
	ChannelID  string
	CapturedAt time.Time
	Metrics
}

// SnapshotStore records and retrieves metric observations.
type SnapshotStore struct {
	DB *sql.DB
}

// NewSnapshotStore returns a store backed by the given database.
func NewSnapshotStore(db *sql.DB) *SnapshotStore { return &SnapshotStore{DB: db} }

// Record appends a snapshot. It never overwrites prior rows. Failures come back
// as *StorageError; the caller should log and keep serving the in-memory data.
func (s *SnapshotStore) Record(ctx context.Context, channelID string, m Metrics, at time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO snapshots (channel_id, captured_at, view_count, like_count, comment_count) VALUES ($1,$2,$3,$4,$5)`,
		channelID, at.UTC(), m.Views, m.Likes, m.Comments)
	if err != nil {
		return &StorageError{Op: "record snapshot", Err: err}
	}
	return nil
}

// Latest returns the most recent snapshot for a channel, or ErrNotFound.
func (s *SnapshotStore) Latest(ctx context.Context, channelID string) (Snapshot, error) {
	var snap Snapshot
	snap.ChannelID = channelID
	err := s.DB.QueryRowContext(ctx,
		`SELECT captured_at, view_count, like_count, comment_count FROM snapshots
		 WHERE channel_id=$1 ORDER BY captured_at DESC, id DESC LIMIT 1`, channelID).
		Scan(&snap.CapturedAt, &snap.Views, &snap.Likes, &snap.Comments)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, &StorageError{Op: "latest snapshot", Err: err}
	}
	snap.CapturedAt = snap.CapturedAt.UTC()
	return snap, nil
}

// rangePageSize bounds how many rows a cursor loads per query.
const rangePageSize = 500

// Range returns a cursor over snapshots for channelID with from <= captured_at < to,
// ordered by captured_at ascending. The cursor pages lazily via keyset queries, so it
// is finite and restartable: Reset rewinds it to the beginning.
func (s *SnapshotStore) Range(channelID string, from, to time.Time) *SnapshotCursor {
	return &SnapshotCursor{
		db:        s.DB,
		channelID: channelID,
		from:      from.UTC(),
		to:        to.UTC(),
		after:     from.UTC(),
	}
}

// SnapshotCursor lazily iterates a snapshot range in ascending timestamp order.
// Usage:
//
//	cur := store.Range(id, from, to)
//	for {
//		snap, err := cur.Next(ctx)
//		if err == ErrNotFound { break }
//		...
//	}
type SnapshotCursor struct {
	db        *sql.DB
	channelID string
	from, to  time.Time

	after   time.Time
	afterID int64
	page    []Snapshot
	pageIDs []int64
	pos     int
	done    bool
}

// Reset rewinds the cursor to the start of its range.
func (c *SnapshotCursor) Reset() {
	c.after = c.from
	c.afterID = 0
	c.page = nil
	c.pageIDs = nil
	c.pos = 0
	c.done = false
}

// Next returns the next snapshot in the range, ErrNotFound when exhausted, or a
// *StorageError on query failure (the cursor stays usable; retrying re-queries
// the same page).
func (c *SnapshotCursor) Next(ctx context.Context) (Snapshot, error) {
	if c.pos >= len(c.page) {
		if c.done {
			return Snapshot{}, ErrNotFound
		}
		if err := c.loadPage(ctx); err != nil {
			return Snapshot{}, err
		}
		if len(c.page) == 0 {
			c.done = true
			return Snapshot{}, ErrNotFound
		}
	}
	snap := c.page[c.pos]
	c.afterID = c.pageIDs[c.pos]
	c.after = snap.CapturedAt
	c.pos++
	return snap, nil
}

func (c *SnapshotCursor) loadPage(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, captured_at, view_count, like_count, comment_count FROM snapshots
		 WHERE channel_id=$1 AND captured_at >= $2 AND captured_at < $3 AND (captured_at > $4 OR (captured_at = $4 AND id > $5))
		 ORDER BY captured_at ASC, id ASC LIMIT $6`,
		c.channelID, c.from, c.to, c.after, c.afterID, rangePageSize)
	if err != nil {
		return &StorageError{Op: "range snapshots", Err: err}
	}
	defer func() { _ = rows.Close() }()

	c.page = c.page[:0]
	c.pageIDs = c.pageIDs[:0]
	c.pos = 0
	for rows.Next() {
		var snap Snapshot
		var id int64
		snap.ChannelID = c.channelID
		if err := rows.Scan(&id, &snap.CapturedAt, &snap.Views, &snap.Likes, &snap.Comments); err != nil {
			return &StorageError{Op: "scan snapshot", Err: err}
		}
		snap.CapturedAt = snap.CapturedAt.UTC()
		c.page = append(c.page, snap)
		c.pageIDs = append(c.pageIDs, id)
	}
	if err := rows.Err(); err != nil {
		return &StorageError{Op: "range snapshots", Err: err}
	}
	if len(c.page) < rangePageSize {
		c.done = true
	}
	return nil
}

// Prune deletes snapshots captured before the cutoff and returns the number of
// rows removed. Daily aggregates persist separately, so pruned raw data does not
// invalidate already-computed rollups.
func (s *SnapshotStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM snapshots WHERE captured_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, &StorageError{Op: "prune snapshots", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// UpsertChannel refreshes the channel registry row after a successful fetch.
// Entities are immutable once created except by re-fetch, which is exactly
// what lands here.
func UpsertChannel(ctx context.Context, dbx *sql.DB, id, name, handle string, subscribers int64) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO channels (channel_id, channel_name, handle, subscriber_count, updated_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT(channel_id) DO UPDATE SET channel_name=EXCLUDED.channel_name, handle=EXCLUDED.handle,
			subscriber_count=EXCLUDED.subscriber_count, updated_at=NOW()`, id, name, handle, subscribers)
	if err != nil {
		return &StorageError{Op: "upsert channel", Err: fmt.Errorf("%s: %w", id, err)}
	}
	return nil
}
