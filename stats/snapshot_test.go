package stats

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/borissharikoff-droid/youtube/testutil"
)

// setupStatsDB opens the shared test database with clean stats tables. Tests
// that need it skip unless TEST_PG_DSN is set.
func setupStatsDB(t *testing.T) *sql.DB {
	t.Helper()
	dbx := testutil.SetupTestDB(t)
	testutil.TruncateStatsTables(t, dbx)
	return dbx
}

func mustRecord(t *testing.T, s *SnapshotStore, channelID string, m Metrics, at time.Time) {
	t.Helper()
	if err := s.Record(context.Background(), channelID, m, at); err != nil {
		t.Fatalf("record snapshot: %v", err)
	}
}

func TestSnapshotRecordAndLatest(t *testing.T) {
	dbx := setupStatsDB(t)
	s := NewSnapshotStore(dbx)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustRecord(t, s, "UCa", Metrics{Views: 100, Likes: 10, Comments: 5}, base)
	mustRecord(t, s, "UCa", Metrics{Views: 150, Likes: 12, Comments: 6}, base.Add(time.Hour))
	mustRecord(t, s, "UCb", Metrics{Views: 999}, base.Add(2*time.Hour))

	snap, err := s.Latest(ctx, "UCa")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap.Views != 150 || snap.Likes != 12 || snap.Comments != 6 {
		t.Errorf("latest = %+v, want the second snapshot", snap.Metrics)
	}
	if !snap.CapturedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("CapturedAt = %v, want %v", snap.CapturedAt, base.Add(time.Hour))
	}

	if _, err := s.Latest(ctx, "UCmissing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("latest for unknown channel = %v, want ErrNotFound", err)
	}
}

func TestSnapshotAppendOnly(t *testing.T) {
	dbx := setupStatsDB(t)
	s := NewSnapshotStore(dbx)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Same channel and timestamp twice: both rows survive.
	mustRecord(t, s, "UCa", Metrics{Views: 100}, at)
	mustRecord(t, s, "UCa", Metrics{Views: 101}, at)

	var n int
	if err := dbx.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE channel_id='UCa'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("snapshot count = %d, want 2 (append-only)", n)
	}
}

func TestSnapshotRangeOrderAndBounds(t *testing.T) {
	dbx := setupStatsDB(t)
	s := NewSnapshotStore(dbx)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		mustRecord(t, s, "UCa", Metrics{Views: int64(100 + i)}, base.Add(time.Duration(i)*time.Hour))
	}
	// Out-of-range and other-channel rows must not appear.
	mustRecord(t, s, "UCa", Metrics{Views: 9999}, base.Add(-time.Hour))
	mustRecord(t, s, "UCb", Metrics{Views: 8888}, base.Add(time.Hour))

	// Bounds are half-open: [from, to).
	cur := s.Range("UCa", base, base.Add(5*time.Hour))
	var got []Snapshot
	for {
		snap, err := cur.Next(ctx)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, snap)
	}
	if len(got) != 5 {
		t.Fatalf("got %d snapshots, want 5", len(got))
	}
	for i, snap := range got {
		if snap.Views != int64(100+i) {
			t.Errorf("snapshot[%d].Views = %d, want %d (ascending order)", i, snap.Views, 100+i)
		}
	}

	// Exhausted cursors stay exhausted.
	if _, err := cur.Next(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("next after exhaustion = %v, want ErrNotFound", err)
	}

	// Reset rewinds to the beginning.
	cur.Reset()
	snap, err := cur.Next(ctx)
	if err != nil {
		t.Fatalf("next after reset: %v", err)
	}
	if snap.Views != 100 {
		t.Errorf("first snapshot after reset has Views=%d, want 100", snap.Views)
	}
}

func TestSnapshotRangeEmpty(t *testing.T) {
	dbx := setupStatsDB(t)
	s := NewSnapshotStore(dbx)

	cur := s.Range("UCnothing", time.Now().Add(-time.Hour), time.Now())
	if _, err := cur.Next(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("next on empty range = %v, want ErrNotFound", err)
	}
}

func TestSnapshotPrune(t *testing.T) {
	dbx := setupStatsDB(t)
	s := NewSnapshotStore(dbx)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mustRecord(t, s, "UCa", Metrics{Views: 1}, base)
	mustRecord(t, s, "UCa", Metrics{Views: 2}, base.Add(24*time.Hour))
	mustRecord(t, s, "UCa", Metrics{Views: 3}, base.Add(48*time.Hour))

	n, err := s.Prune(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}

	snap, err := s.Latest(ctx, "UCa")
	if err != nil {
		t.Fatalf("latest after prune: %v", err)
	}
	if snap.Views != 3 {
		t.Errorf("latest after prune = %d, want 3", snap.Views)
	}
}

func TestUpsertChannel(t *testing.T) {
	dbx := setupStatsDB(t)
	ctx := context.Background()

	if err := UpsertChannel(ctx, dbx, "UCa", "Alpha", "@alpha", 100); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := UpsertChannel(ctx, dbx, "UCa", "Alpha Renamed", "@alpha", 250); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var name string
	var subs int64
	if err := dbx.QueryRowContext(ctx, `SELECT channel_name, subscriber_count FROM channels WHERE channel_id='UCa'`).Scan(&name, &subs); err != nil {
		t.Fatalf("read channel: %v", err)
	}
	if name != "Alpha Renamed" || subs != 250 {
		t.Errorf("channel = (%q, %d), want (Alpha Renamed, 250)", name, subs)
	}
}
