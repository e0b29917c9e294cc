package stats

import (
	"context"
	"testing"
	"time"
)

func TestCacheMemoryTierRoundTrip(t *testing.T) {
	c := NewCache(nil, TTLPolicy{KindChannelStats: time.Hour})
	ctx := context.Background()

	if _, ok := c.Get(ctx, "channel_stats:UCa"); ok {
		t.Fatal("hit on empty cache")
	}
	if err := c.Set(ctx, "channel_stats:UCa", `{"views":1}`, KindChannelStats); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get(ctx, "channel_stats:UCa")
	if !ok {
		t.Fatal("miss after set")
	}
	if got != `{"views":1}` {
		t.Errorf("got %q", got)
	}
}

func TestCacheExpiryIsStrict(t *testing.T) {
	c := NewCache(nil, TTLPolicy{KindChannelStats: time.Hour})
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	if err := c.Set(ctx, "channel_stats:UCa", "v", KindChannelStats); err != nil {
		t.Fatalf("set: %v", err)
	}

	// One nanosecond before the deadline still serves.
	current = current.Add(time.Hour - time.Nanosecond)
	if _, ok := c.Get(ctx, "channel_stats:UCa"); !ok {
		t.Error("miss just before expiry")
	}

	// At the deadline the value is gone: never served at or past expires_at.
	current = current.Add(time.Nanosecond)
	if _, ok := c.Get(ctx, "channel_stats:UCa"); ok {
		t.Error("hit at exact expiry deadline")
	}
}

func TestCachePerKindTTL(t *testing.T) {
	c := NewCache(nil, TTLPolicy{
		KindChannelStats: time.Hour,
		KindVideoList:    15 * time.Minute,
	})
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	if err := c.Set(ctx, "channel_stats:UCa", "cs", KindChannelStats); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set(ctx, "video_list:UCa", "vl", KindVideoList); err != nil {
		t.Fatalf("set: %v", err)
	}

	current = current.Add(20 * time.Minute)
	if _, ok := c.Get(ctx, "video_list:UCa"); ok {
		t.Error("video list survived past its 15m TTL")
	}
	if _, ok := c.Get(ctx, "channel_stats:UCa"); !ok {
		t.Error("channel stats expired before its 1h TTL")
	}
}

func TestCacheTTLOverride(t *testing.T) {
	c := NewCache(nil, TTLPolicy{KindChannelStats: time.Hour})
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	if err := c.SetWithTTL(ctx, "channel_stats:UCa", "v", KindChannelStats, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "channel_stats:UCa"); ok {
		t.Error("override TTL not honored")
	}
}

func TestCacheDurableTierSurvivesMemoryLoss(t *testing.T) {
	dbx := setupStatsDB(t)
	ctx := context.Background()

	first := NewCache(dbx, TTLPolicy{KindChannelStats: time.Hour})
	if err := first.Set(ctx, "channel_stats:UCa", "persisted", KindChannelStats); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A fresh cache over the same database simulates a process restart.
	second := NewCache(dbx, TTLPolicy{KindChannelStats: time.Hour})
	got, ok := second.Get(ctx, "channel_stats:UCa")
	if !ok {
		t.Fatal("durable tier miss after restart")
	}
	if got != "persisted" {
		t.Errorf("got %q", got)
	}
}

func TestCacheDurableTierRespectsExpiry(t *testing.T) {
	dbx := setupStatsDB(t)
	ctx := context.Background()

	writer := NewCache(dbx, TTLPolicy{KindChannelStats: time.Hour})
	past := time.Now().Add(-2 * time.Hour)
	writer.now = func() time.Time { return past }
	if err := writer.Set(ctx, "channel_stats:UCa", "ancient", KindChannelStats); err != nil {
		t.Fatalf("set: %v", err)
	}

	reader := NewCache(dbx, TTLPolicy{KindChannelStats: time.Hour})
	if _, ok := reader.Get(ctx, "channel_stats:UCa"); ok {
		t.Error("expired durable entry was served")
	}
}

func TestCacheClearExpired(t *testing.T) {
	dbx := setupStatsDB(t)
	ctx := context.Background()

	c := NewCache(dbx, TTLPolicy{KindChannelStats: time.Hour})
	past := time.Now().Add(-2 * time.Hour)
	c.now = func() time.Time { return past }
	if err := c.Set(ctx, "channel_stats:old", "x", KindChannelStats); err != nil {
		t.Fatalf("set old: %v", err)
	}
	c.now = time.Now
	if err := c.Set(ctx, "channel_stats:fresh", "y", KindChannelStats); err != nil {
		t.Fatalf("set fresh: %v", err)
	}

	n, err := c.ClearExpired(ctx)
	if err != nil {
		t.Fatalf("clear expired: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d rows, want 1", n)
	}
	if _, ok := c.Get(ctx, "channel_stats:fresh"); !ok {
		t.Error("fresh entry was swept")
	}
}
