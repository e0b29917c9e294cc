package stats

import (
	"context"
	"testing"
	"time"
)

func TestPollOnceRecordsLastPollTime(t *testing.T) {
	dbx := setupStatsDB(t)
	ctx := context.Background()

	if got := LastPoll(ctx, dbx); !got.IsZero() {
		t.Errorf("LastPoll before any poll = %v, want zero", got)
	}

	store := NewSnapshotStore(dbx)
	cache := NewCache(dbx, nil)
	quota := NewQuotaTracker(ctx, dbx, 100, 24*time.Hour)
	agg := NewAggregator(dbx)
	svc := NewService(store, cache, quota, agg, nil, time.Second)

	before := time.Now().UTC().Add(-time.Second)
	PollOnce(ctx, dbx, svc, []string{"UCa"})

	got := LastPoll(ctx, dbx)
	if got.IsZero() {
		t.Fatal("LastPoll still zero after PollOnce")
	}
	if got.Before(before) {
		t.Errorf("LastPoll = %v, want at or after %v", got, before)
	}
}

func TestPollOnceNoChannelsIsNoop(t *testing.T) {
	dbx := setupStatsDB(t)
	ctx := context.Background()

	svc := NewService(NewSnapshotStore(dbx), NewCache(dbx, nil),
		NewQuotaTracker(ctx, dbx, 100, 24*time.Hour), NewAggregator(dbx), nil, time.Second)
	PollOnce(ctx, dbx, svc, nil)

	if got := LastPoll(ctx, dbx); !got.IsZero() {
		t.Errorf("LastPoll after empty poll = %v, want zero", got)
	}
}
