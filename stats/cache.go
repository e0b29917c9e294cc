package stats

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/borissharikoff-droid/youtube/telemetry"
)

// ResourceKind tags a cache entry with the kind of upstream resource it holds.
// Each kind has its own TTL; relative ordering long >= medium >= short is
// validated at config load, not here.
type ResourceKind string

const (
	KindChannelStats ResourceKind = "channel_stats"
	KindVideoList    ResourceKind = "video_list"
	KindComments     ResourceKind = "comments"
)

// TTLPolicy maps resource kinds to expiration durations.
type TTLPolicy map[ResourceKind]time.Duration

// DefaultTTL is used for unrecognized kinds.
const DefaultTTL = 30 * time.Minute

// memEntry is what the memory tier stores. The LRU itself expires entries by
// wall clock, but the explicit expiry is re-checked on read so a value is never
// served at or past its expires_at.
type memEntry struct {
	value     string
	expiresAt time.Time
}

const memCacheSize = 1024

// Cache is the tiered cache in front of the upstream API: a per-kind in-memory
// expirable LRU backed by the cache_entries table, so recent results survive a
// restart. Expiration is purely time-based; there is no pressure eviction beyond
// the LRU size cap on the memory tier.
type Cache struct {
	db  *sql.DB
	ttl TTLPolicy
	mem map[ResourceKind]*expirable.LRU[string, memEntry]
	now func() time.Time
}

// NewCache builds the tiered cache. A nil db disables the durable tier (used in
// some tests); the memory tier always works.
func NewCache(db *sql.DB, ttl TTLPolicy) *Cache {
	c := &Cache{
		db:  db,
		ttl: ttl,
		mem: make(map[ResourceKind]*expirable.LRU[string, memEntry]),
		now: time.Now,
	}
	for _, kind := range []ResourceKind{KindChannelStats, KindVideoList, KindComments} {
		c.mem[kind] = expirable.NewLRU[string, memEntry](memCacheSize, nil, c.ttlFor(kind))
	}
	return c
}

func (c *Cache) ttlFor(kind ResourceKind) time.Duration {
	if d, ok := c.ttl[kind]; ok && d > 0 {
		return d
	}
	return DefaultTTL
}

// Get returns the cached value for key if it has not expired. Misses are not
// distinguished by cause; expired rows are left for the sweep (lazy expiration).
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	now := c.now()
	for _, lru := range c.mem {
		if e, ok := lru.Get(key); ok {
			if now.Before(e.expiresAt) {
				telemetry.CacheHits.Inc()
				return e.value, true
			}
			lru.Remove(key)
		}
	}
	if c.db == nil {
		telemetry.CacheMisses.Inc()
		return "", false
	}
	var value string
	var kind string
	var expiresAt time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT value, resource_kind, expires_at FROM cache_entries WHERE key=$1`, key).
		Scan(&value, &kind, &expiresAt)
	if err == sql.ErrNoRows || (err == nil && !now.Before(expiresAt)) {
		telemetry.CacheMisses.Inc()
		return "", false
	}
	if err != nil {
		slog.Warn("cache read failed", slog.Any("err", err), slog.String("component", "cache"))
		telemetry.CacheMisses.Inc()
		return "", false
	}
	// Re-warm the memory tier from the durable hit.
	if lru, ok := c.mem[ResourceKind(kind)]; ok {
		lru.Add(key, memEntry{value: value, expiresAt: expiresAt})
	}
	telemetry.CacheHits.Inc()
	return value, true
}

// Set stores a value under key with the kind's configured TTL, writing through
// both tiers.
func (c *Cache) Set(ctx context.Context, key, value string, kind ResourceKind) error {
	return c.SetWithTTL(ctx, key, value, kind, c.ttlFor(kind))
}

// SetWithTTL stores a value with an explicit TTL override.
func (c *Cache) SetWithTTL(ctx context.Context, key, value string, kind ResourceKind, ttl time.Duration) error {
	expiresAt := c.now().Add(ttl)
	if lru, ok := c.mem[kind]; ok {
		lru.Add(key, memEntry{value: value, expiresAt: expiresAt})
	}
	if c.db == nil {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `INSERT INTO cache_entries (key, value, resource_kind, expires_at, updated_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, resource_kind=EXCLUDED.resource_kind,
			expires_at=EXCLUDED.expires_at, updated_at=NOW()`, key, value, string(kind), expiresAt)
	if err != nil {
		return &StorageError{Op: "cache set", Err: err}
	}
	return nil
}

// ClearExpired reclaims expired rows from the durable tier. The memory tier
// expires on its own.
func (c *Cache) ClearExpired(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, nil
	}
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= $1`, c.now())
	if err != nil {
		return 0, &StorageError{Op: "cache sweep", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartSweepJob periodically clears expired durable-tier entries until ctx is done.
func (c *Cache) StartSweepJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.ClearExpired(ctx)
			if err != nil {
				slog.Warn("cache sweep failed", slog.Any("err", err), slog.String("component", "cache"))
				continue
			}
			if n > 0 {
				slog.Debug("cache sweep reclaimed entries", slog.Int64("count", n), slog.String("component", "cache"))
			}
		}
	}
}
